package template

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Registry manages expression environments for different languages
type Registry struct {
	envs map[string]Environment
}

const (
	LangLua   = "lua"
	LangAle   = "ale"
	LangJPath = "jpath"

	DefaultLanguage = LangLua
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported template language")
)

// NewRegistry creates a registry with the Lua, Ale, and JPath environments
func NewRegistry() *Registry {
	return NewRegistrySized(DefaultCacheSize)
}

// NewRegistrySized creates a registry whose environments cache up to size
// compiled expressions each
func NewRegistrySized(size int) *Registry {
	return &Registry{
		envs: map[string]Environment{
			LangAle:   NewAleEnvSized(size),
			LangJPath: NewJPathEnv(),
			LangLua:   NewLuaEnvSized(size),
		},
	}
}

// Register adds or replaces the environment for a language
func (r *Registry) Register(language string, env Environment) {
	r.envs[language] = env
}

// Get returns the expression environment for the given language
func (r *Registry) Get(language string) (Environment, error) {
	env, ok := r.envs[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return env, nil
}

// Port returns a renderer for the given language. An empty language
// selects the default
func (r *Registry) Port(language string) (Port, error) {
	if language == "" {
		language = DefaultLanguage
	}
	env, err := r.Get(language)
	if err != nil {
		return nil, err
	}
	return NewRenderer(env), nil
}

// Languages returns the registered language names in lexical order
func (r *Registry) Languages() []string {
	return slices.Sorted(maps.Keys(r.envs))
}
