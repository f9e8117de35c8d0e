// Package server exposes the conversion pipeline over a small REST surface
// and serves the browser UI.
package server

import (
	"errors"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-web/internal/artifact"
	"github.com/book-expert/tts-web/internal/core"
	"github.com/book-expert/tts-web/internal/jobstore"
	"github.com/book-expert/tts-web/internal/orchestrator"
	"github.com/gofiber/fiber/v2"
)

const audioContentType = "audio/mpeg"

// submitPayload is the request body for POST /api/conversions.
type submitPayload struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Speed  string `json:"speed"`
	Format string `json:"format"`
}

// Server bundles the HTTP dependencies and owns the fiber application.
type Server struct {
	app       *fiber.App
	orch      *orchestrator.Orchestrator
	store     core.JobStore
	artifacts core.ArtifactStore
	log       *logger.Logger
}

// New builds the server and registers all routes. staticDir may be empty to
// disable UI serving.
func New(
	orch *orchestrator.Orchestrator,
	store core.JobStore,
	artifacts core.ArtifactStore,
	staticDir string,
	log *logger.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	srv := &Server{
		app:       app,
		orch:      orch,
		store:     store,
		artifacts: artifacts,
		log:       log,
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Post("/api/conversions", srv.submitConversion)
	app.Get("/api/conversions/:id", srv.getConversion)
	app.Get("/api/conversions", srv.listConversions)
	app.Get("/api/audio/:filename", srv.downloadAudio)

	if staticDir != "" {
		app.Static("/", staticDir)
	}

	return srv
}

// App exposes the underlying fiber application for testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP on the given address.
func (s *Server) Listen(addr string) error {
	err := s.app.Listen(addr)
	if err != nil {
		return errors.Join(errors.New("http server stopped"), err)
	}

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) submitConversion(c *fiber.Ctx) error {
	var payload submitPayload

	err := c.BodyParser(&payload)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json body")
	}

	job, err := s.orch.Submit(c.Context(), orchestrator.SubmitRequest{
		Text:   payload.Text,
		Voice:  payload.Voice,
		Speed:  payload.Speed,
		Format: payload.Format,
	})
	if err != nil {
		if isValidationError(err) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		s.log.Error("Conversion submission failed: %v", err)

		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     job.ID,
		"status": "processing",
	})
}

func (s *Server) getConversion(c *fiber.Ctx) error {
	job, err := s.store.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "conversion not found")
		}

		s.log.Error("Conversion lookup failed: %v", err)

		return fiber.ErrInternalServerError
	}

	return c.JSON(job)
}

func (s *Server) listConversions(c *fiber.Ctx) error {
	limit := jobstore.DefaultListLimit

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}

		limit = parsed
	}

	jobs, err := s.store.ListRecent(limit)
	if err != nil {
		s.log.Error("Conversion listing failed: %v", err)

		return fiber.ErrInternalServerError
	}

	return c.JSON(jobs)
}

func (s *Server) downloadAudio(c *fiber.Ctx) error {
	filename := c.Params("filename")

	data, err := s.artifacts.Load(c.Context(), filename)
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "audio not found")
		}

		s.log.Error("Audio download failed for %s: %v", filename, err)

		return fiber.ErrInternalServerError
	}

	c.Set(fiber.HeaderContentType, audioContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)

	return c.Send(data)
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrTextEmpty) ||
		errors.Is(err, core.ErrUnsupportedVoice) ||
		errors.Is(err, core.ErrUnsupportedSpeed) ||
		errors.Is(err, core.ErrUnsupportedFormat)
}
