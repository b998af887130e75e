package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountStatic serves the board frontend from the configured directory and
// falls back to index.html for client-side routes. Unknown /api paths always
// answer with a JSON 404.
func (s *Server) mountStatic() {
	index := ""
	if dir := s.staticDir; dir == "" {
		s.logger.Warn("static directory not configured; API only mode")
	} else if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.logger.Warn("static directory missing", "path", dir, "error", err)
	} else {
		index = s.mountAssets(dir)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		if index == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.File(index)
	})
}

// mountAssets registers the asset routes and returns the index path, or ""
// when the build has no index.html.
func (s *Server) mountAssets(dir string) string {
	if assets := filepath.Join(dir, "assets"); isDir(assets) {
		s.engine.StaticFS("/assets", gin.Dir(assets, false))
	}
	if favicon := filepath.Join(dir, "favicon.ico"); fileExists(favicon) {
		s.engine.StaticFile("/favicon.ico", favicon)
	}

	index := filepath.Join(dir, "index.html")
	if !fileExists(index) {
		s.logger.Warn("index.html not found", "path", index)
		return ""
	}
	s.engine.GET("/", func(c *gin.Context) {
		c.File(index)
	})
	return index
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
