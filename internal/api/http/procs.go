package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/proc"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// SpawnRequest starts a parentless process. An empty Argv runs the program
// with its path as the only argument.
type SpawnRequest struct {
	Path string   `json:"path" binding:"required"`
	Argv []string `json:"argv"`
}

// ListProcesses lists every live descriptor, zombies included
func (h *Handlers) ListProcesses(c *gin.Context) {
	procs := h.kernel.Processes()
	c.JSON(http.StatusOK, gin.H{
		"processes": procs,
		"count":     len(procs),
	})
}

// GetProcess returns one descriptor
func (h *Handlers) GetProcess(c *gin.Context) {
	pid, err := strconv.ParseInt(c.Param("pid"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pid"})
		return
	}

	info, ok := h.kernel.Process(proc.Pid(pid))
	if !ok {
		respondError(c, abi.ESRCH)
		return
	}
	c.JSON(http.StatusOK, info)
}

// SpawnProcess starts a program the way the boot plan does
func (h *Handlers) SpawnProcess(c *gin.Context) {
	var req SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	argv := req.Argv
	if len(argv) == 0 {
		argv = []string{req.Path}
	}

	pid, err := h.kernel.Spawn(req.Path, argv)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pid": pid})
}

// respondError writes a kernel error with the status its errno maps to.
func respondError(c *gin.Context, err error) {
	var errno abi.Errno
	if !errors.As(err, &errno) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(statusOf(errno), gin.H{
		"error": err.Error(),
		"errno": errno.Name(),
	})
}

func statusOf(errno abi.Errno) int {
	switch errno {
	case abi.ENOENT, abi.ESRCH:
		return http.StatusNotFound
	case abi.ENOEXEC:
		return http.StatusUnprocessableEntity
	case abi.E2BIG, abi.ENAMETOOLONG, abi.EINVAL, abi.EFAULT:
		return http.StatusBadRequest
	case abi.ENPROC, abi.EMPROC, abi.ENOMEM:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
