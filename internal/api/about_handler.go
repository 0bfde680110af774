package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// AboutInfo describes the running process.
type AboutInfo struct {
	Hostname    string `json:"hostname"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
}

// NewAboutInfo fills the hostname and start date.
func NewAboutInfo(name, version, description string) AboutInfo {
	hostname, _ := os.Hostname()
	return AboutInfo{
		Hostname:    hostname,
		Type:        name,
		Version:     version,
		Description: description,
		StartDate:   time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// AboutHandler serves /about and the ping route.
type AboutHandler struct {
	info AboutInfo
}

// NewAboutHandler creates the about handler.
func NewAboutHandler(info AboutInfo) *AboutHandler {
	return &AboutHandler{info: info}
}

// About returns the process description.
func (h *AboutHandler) About(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}

// Ping answers "pong/" followed by the token.
func (h *AboutHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, "pong/"+c.Param("token"))
}
