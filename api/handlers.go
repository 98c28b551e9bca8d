package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"adbfleet/adb"
	"adbfleet/models"
	"adbfleet/service"
	"adbfleet/shell"
	"adbfleet/store"
)

// HistoryStore reads recorded dispatches.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]models.DispatchRecord, error)
	Get(ctx context.Context, id string) (models.DispatchRecord, error)
}

// Handler serves the fleet over HTTP.
type Handler struct {
	dispatcher *service.Dispatcher
	devices    *service.DeviceManager
	queue      *service.Queue
	history    HistoryStore
	suRetries  int
	logger     log.Logger
}

type HandlerOption func(*Handler)

// WithQueue enables async dispatches.
func WithQueue(q *service.Queue) HandlerOption {
	return func(h *Handler) { h.queue = q }
}

// WithHistory enables the history endpoints.
func WithHistory(hs HistoryStore) HandlerOption {
	return func(h *Handler) { h.history = hs }
}

// WithSuperuserRetries sets the retry count of elevated shell requests.
func WithSuperuserRetries(n int) HandlerOption {
	return func(h *Handler) { h.suRetries = n }
}

func WithLogger(logger log.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(d *service.Dispatcher, dm *service.DeviceManager, opts ...HandlerOption) *Handler {
	h := &Handler{dispatcher: d, devices: dm, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = log.With(h.logger, "component", "api")
	return h
}

// statusFor maps call-level fleet errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, adb.ErrEmptySerial):
		return http.StatusBadRequest
	case errors.Is(err, adb.ErrNoDevices):
		return http.StatusNotFound
	case errors.Is(err, adb.ErrEnumeration):
		return http.StatusBadGateway
	case errors.Is(err, adb.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		level.Error(h.logger).Log("msg", "request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, models.ErrorResponse(err))
}

// GetDevices enumerates the attached devices live.
func (h *Handler) GetDevices(c *gin.Context) {
	q := adb.DeviceQuery{
		OnlineOnly: c.Query("online") == "true",
		Long:       c.Query("long") == "true",
	}
	devices, err := h.dispatcher.Devices(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	if devices == nil {
		devices = adb.DeviceList{}
	}
	c.JSON(http.StatusOK, models.SuccessResponse(devices))
}

// GetSnapshot returns the devices found by the last scan.
func (h *Handler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, models.SuccessResponse(h.devices.GetAllDevices()))
}

func (h *Handler) GetDevice(c *gin.Context) {
	device := h.devices.GetDevice(c.Param("id"))
	if device == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse(errors.New("device not found: "+c.Param("id"))))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(device))
}

// ScanDevices rescans the attached devices and returns the new snapshot.
func (h *Handler) ScanDevices(c *gin.Context) {
	if err := h.devices.ScanDevices(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(h.devices.GetAllDevices()))
}

// Dispatch runs raw adb arguments on the requested devices.
func (h *Handler) Dispatch(c *gin.Context) {
	var req models.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(err))
		return
	}
	h.run(c, adb.NewCommand(req.Args...).WithWait(req.Wait), req.DeviceIDs, req.Async)
}

// Shell runs one shell command line, optionally through su.
func (h *Handler) Shell(c *gin.Context) {
	var req models.ShellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(err))
		return
	}

	if req.Async {
		line := req.Command
		if req.Superuser {
			line = shell.Su(line)
		}
		h.run(c, adb.NewCommand("shell", line), req.DeviceIDs, true)
		return
	}

	sh := shell.New(
		h.dispatcher.Fleet().Subset(req.DeviceIDs...),
		shell.WithSuperuser(req.Superuser),
		shell.WithSuperuserRetries(h.suRetries),
		shell.WithLogger(h.logger),
	)
	result, err := sh.Execute(c.Request.Context(), req.Command)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(result))
}

func (h *Handler) run(c *gin.Context, cmd adb.Command, targets []string, async bool) {
	if async {
		if h.queue == nil {
			c.JSON(http.StatusNotImplemented, models.ErrorResponse(errors.New("async dispatch is disabled")))
			return
		}
		if err := h.queue.Enqueue(cmd, targets); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, models.MessageResponse("queued: "+cmd.String()))
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), cmd, targets)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(result))
}

// GetHistory lists recent dispatches, newest first.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, models.ErrorResponse(errors.New("history is disabled")))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse(errors.New("limit must be a non-negative integer")))
			return
		}
		limit = n
	}
	records, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(records))
}

func (h *Handler) GetDispatch(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, models.ErrorResponse(errors.New("history is disabled")))
		return
	}
	record, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(record))
}
