package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/miniscript/pkg/api"
)

func (s *Server) listTasks(c *gin.Context) {
	tasks := s.tasks.Describe()
	c.JSON(http.StatusOK, api.TasksListResponse{
		Tasks: tasks,
		Count: len(tasks),
	})
}

func (s *Server) listLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, api.LanguagesResponse{
		Default:   s.config.Language,
		Languages: s.templates.Languages(),
	})
}
