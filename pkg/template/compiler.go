package template

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

type (
	compileFunc[T any] func(expr string, argNames []string) (T, error)

	compiler[T any] struct {
		cache *lru.Cache[string, T]
		build compileFunc[T]
	}
)

// DefaultCacheSize is the number of compiled expressions kept per language
const DefaultCacheSize = 4096

func newCompiler[T any](size int, build compileFunc[T]) *compiler[T] {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, T](size)
	return &compiler[T]{
		cache: cache,
		build: build,
	}
}

func (c *compiler[T]) compile(expr string, argNames []string) (T, error) {
	key := hashExpr(expr, argNames)
	if res, ok := c.cache.Get(key); ok {
		return res, nil
	}

	res, err := c.build(expr, argNames)
	if err != nil {
		return res, err
	}
	c.cache.Add(key, res)
	return res, nil
}

func hashExpr(expr string, argNames []string) string {
	h := sha256.New()
	_, _ = h.Write([]byte(expr))

	for _, arg := range argNames {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(arg))
	}

	return hex.EncodeToString(h.Sum(nil))
}
