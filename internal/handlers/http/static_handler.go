package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// StaticHandler serves the web client from a directory. Unknown paths
// redirect to the root.
type StaticHandler struct {
	dir string
}

func NewStaticHandler(dir string) *StaticHandler {
	return &StaticHandler{dir: dir}
}

func (h *StaticHandler) Serve(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusNotFound)
		return
	}

	name := path.Clean("/" + c.Request.URL.Path)
	if name == "/" {
		name = "/index.html"
	}

	file := filepath.Join(h.dir, filepath.FromSlash(name))
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.File(file)
}
