package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/miniscript/internal/loader"
	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/engine"
	"github.com/kode4food/miniscript/pkg/template"
)

const checkValid = "script is valid"

func (s *Server) runScript(c *gin.Context) {
	req, ok := s.bindRunRequest(c)
	if !ok {
		return
	}
	eng, script, ok := s.prepare(c, req)
	if !ok {
		return
	}

	id := req.ID
	if id == "" {
		id = engine.NewRunID()
	}

	res, err := eng.RunContext(
		c.Request.Context(), id, script, engine.NewContext(req.Vars),
	)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{
			Error:  err.Error(),
			Kind:   api.KindOf(err),
			RunID:  id,
			Vars:   res.Vars,
			Status: http.StatusUnprocessableEntity,
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) checkScript(c *gin.Context) {
	req, ok := s.bindRunRequest(c)
	if !ok {
		return
	}
	if _, script, ok := s.prepare(c, req); ok {
		c.JSON(http.StatusOK, api.CheckResponse{
			Message: checkValid,
			Tasks:   len(script.Tasks),
		})
	}
}

func (s *Server) bindRunRequest(c *gin.Context) (*api.RunRequest, bool) {
	c.Request.Body = http.MaxBytesReader(
		c.Writer, c.Request.Body, s.config.MaxScriptSize,
	)

	var req api.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, http.StatusRequestEntityTooLarge,
				fmt.Errorf("%w: limit is %d bytes", ErrTooLarge,
					tooLarge.Limit),
			)
			return nil, false
		}
		badRequest(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err),
		)
		return nil, false
	}
	return &req, true
}

// prepare selects the engine for the requested language and statically
// checks the script. A script given as a string is decoded as YAML
func (s *Server) prepare(
	c *gin.Context, req *api.RunRequest,
) (*engine.Engine, *api.Script, bool) {
	lang := req.Language
	if lang == "" {
		lang = s.config.Language
	}
	eng, ok := s.engines[lang]
	if !ok {
		badRequest(c, http.StatusBadRequest,
			fmt.Errorf("%w: %s", template.ErrUnsupportedLanguage, lang),
		)
		return nil, nil, false
	}

	source := req.Script
	if text, ok := source.(string); ok {
		doc, err := loader.Decode([]byte(text))
		if err != nil {
			badRequest(c, http.StatusBadRequest,
				fmt.Errorf("%w: %w", api.ErrInvalidScript, err),
			)
			return nil, nil, false
		}
		source = doc
	}

	script, err := eng.Parse(source)
	if err != nil {
		badRequest(c, http.StatusBadRequest, err)
		return nil, nil, false
	}
	return eng, script, true
}

func badRequest(c *gin.Context, status int, err error) {
	res := api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	}
	if kind := api.KindOf(err); kind != api.KindInternal {
		res.Kind = kind
	}
	c.JSON(status, res)
}
