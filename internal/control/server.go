package control

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gator/domain"
)

var ErrAlreadyRunning = errors.New("already running")

// TryListen tries to bind the control address. If it's already in use, we assume an instance is running.
func TryListen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ErrAlreadyRunning
	}
	return ln, nil
}

type Scheduler interface {
	SetInterval(d time.Duration) error
	Status() domain.SchedulerStatus
}

type Server struct {
	sched Scheduler
	e     *echo.Echo
}

func NewServer(sched Scheduler) *Server {
	s := &Server{sched: sched, e: echo.New()}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.GET("/status", s.handleStatus)
	s.e.POST("/set-interval", s.handleSetInterval)
	s.e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

type intervalRequest struct {
	Duration string `json:"duration"`
}

type intervalResponse struct {
	OK  bool   `json:"ok"`
	Old string `json:"old"`
	New string `json:"new"`
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sched.Status())
}

func (s *Server) handleSetInterval(c echo.Context) error {
	var req intervalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad request")
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid duration: %v", err))
	}
	old := s.sched.Status().Interval
	if err := s.sched.SetInterval(d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, intervalResponse{OK: true, Old: old.String(), New: d.String()})
}
