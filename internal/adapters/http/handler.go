package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/melih/lighthouse/internal/core/deploy"
	"github.com/melih/lighthouse/internal/core/domain"
	"github.com/melih/lighthouse/internal/core/reconcile"
	"github.com/melih/lighthouse/internal/manifest"
)

// DeployService runs reconciliation passes.
type DeployService interface {
	Actual(ctx context.Context) (domain.ActualContainers, error)
	Plan(ctx context.Context, desired domain.DesiredServices) ([]domain.ServiceContainerChange, error)
	Deploy(ctx context.Context, desired domain.DesiredServices) (deploy.Report, error)
}

type ContainerHandler struct {
	service DeployService
	metrics http.Handler

	// deploying serializes passes that mutate the host.
	deploying sync.Mutex
}

// NewContainerHandler returns a handler. metrics may be nil.
func NewContainerHandler(service DeployService, metrics http.Handler) *ContainerHandler {
	return &ContainerHandler{service: service, metrics: metrics}
}

// Register mounts the routes on app.
func (h *ContainerHandler) Register(app *fiber.App) {
	v1 := app.Group("/api").Group("/v1")
	v1.Get("/containers", h.ListContainers)
	v1.Post("/plan", h.Plan)
	v1.Post("/deploy", h.Deploy)

	if h.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.metrics))
	}
}

// BaseContext makes ctx, and the logger it carries, the user context of
// every request.
func BaseContext(ctx context.Context) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(ctx)
		return c.Next()
	}
}

type PlanResponse struct {
	Changes []domain.ServiceContainerChange `json:"changes"`
	Summary reconcile.Summary               `json:"summary"`
}

func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	actual, err := h.service.Actual(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(actual)
}

func (h *ContainerHandler) Plan(c *fiber.Ctx) error {
	desired, err := desiredFromBody(c)
	if err != nil {
		return h.fail(c, err)
	}
	changes, err := h.service.Plan(c.UserContext(), desired)
	if err != nil {
		return h.fail(c, err)
	}
	if changes == nil {
		changes = []domain.ServiceContainerChange{}
	}
	return c.JSON(PlanResponse{Changes: changes, Summary: reconcile.Summarize(changes)})
}

func (h *ContainerHandler) Deploy(c *fiber.Ctx) error {
	desired, err := desiredFromBody(c)
	if err != nil {
		return h.fail(c, err)
	}

	if !h.deploying.TryLock() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "a deploy is already running",
		})
	}
	defer h.deploying.Unlock()

	report, err := h.service.Deploy(c.UserContext(), desired)
	if err != nil {
		return h.fail(c, err)
	}
	if report.Changes == nil {
		report.Changes = []domain.ServiceContainerChange{}
	}
	return c.JSON(report)
}

func desiredFromBody(c *fiber.Ctx) (domain.DesiredServices, error) {
	p, err := manifest.Parse(c.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cerrdefs.ErrInvalidArgument, err)
	}
	desired, err := p.Desired()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cerrdefs.ErrInvalidArgument, err)
	}
	return desired, nil
}

// fail maps err to a status code: invalid input is the client's fault,
// everything else is reported as a server error.
func (h *ContainerHandler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	if cerrdefs.IsInvalidArgument(err) {
		status = fiber.StatusBadRequest
	} else {
		log.G(c.UserContext()).WithError(err).WithField("path", c.Path()).Error("request failed")
	}

	body := fiber.Map{"error": err.Error()}
	var applyErr *domain.ApplyError
	if errors.As(err, &applyErr) {
		body["failed_change"] = applyErr.Change
		body["failed_index"] = applyErr.Index
	}
	return c.Status(status).JSON(body)
}
