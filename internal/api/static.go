package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

var allowedExtensions = map[string]bool{
	".css":  true,
	".js":   true,
	".json": true,
	".png":  true,
	".jpg":  true,
	".svg":  true,
	".ico":  true,
}

// Index serves index.html from the static directory.
func (s *Server) Index(c echo.Context) error {
	return s.serveFile(c, "index.html")
}

// StaticFile serves an allow-listed artifact from the static directory.
func (s *Server) StaticFile(c echo.Context) error {
	name := c.Param("filename")
	if name == "" {
		name = c.Param("*")
	}
	if !allowedExtensions[strings.ToLower(path.Ext(name))] {
		return notFound(c)
	}
	return s.serveFile(c, name)
}

func (s *Server) serveFile(c echo.Context, name string) error {
	clean := path.Clean("/" + name)
	if clean != "/"+name || strings.Contains(name, "\\") {
		return notFound(c)
	}

	f, err := os.Open(filepath.Join(s.staticDir, filepath.FromSlash(clean)))
	if err != nil {
		return notFound(c)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return notFound(c)
	}
	http.ServeContent(c.Response(), c.Request(), info.Name(), info.ModTime(), f)
	return nil
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
}
