package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/types"
)

// auditedOpenAIClient decorates an OpenAIClient with audit rows. Audit
// failures never fail the underlying call.
type auditedOpenAIClient struct {
	inner   OpenAIClient
	logRepo repos.AICallLogRepo
	log     *logger.Logger
}

func NewAuditedOpenAIClient(inner OpenAIClient, logRepo repos.AICallLogRepo, baseLog *logger.Logger) OpenAIClient {
	return &auditedOpenAIClient{
		inner:   inner,
		logRepo: logRepo,
		log:     baseLog.With("service", "AuditedOpenAIClient"),
	}
}

func (c *auditedOpenAIClient) Model() string { return c.inner.Model() }

func (c *auditedOpenAIClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	started := time.Now()
	out, err := c.inner.GenerateJSON(ctx, system, user, schemaName, schema)
	c.record(ctx, schemaName, started, err)
	return out, err
}

func (c *auditedOpenAIClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	started := time.Now()
	out, err := c.inner.GenerateText(ctx, system, user)
	c.record(ctx, "text", started, err)
	return out, err
}

func (c *auditedOpenAIClient) record(ctx context.Context, stage string, started time.Time, callErr error) {
	row := &types.AICallLog{
		ID:        uuid.New(),
		Stage:     stage,
		Model:     c.inner.Model(),
		Success:   callErr == nil,
		LatencyMs: time.Since(started).Milliseconds(),
	}
	if callErr != nil {
		row.Error = callErr.Error()
	}
	if runID := RunIDFromContext(ctx); runID != uuid.Nil {
		row.RunID = &runID
	}
	if clientID := ClientIDFromContext(ctx); clientID != uuid.Nil {
		row.ClientID = &clientID
	}
	if _, err := c.logRepo.Create(context.WithoutCancel(ctx), nil, []*types.AICallLog{row}); err != nil {
		c.log.Warn("Failed to write AI call log", "stage", stage, "error", err)
	}
}

type auditCtxKey int

const (
	runIDKey auditCtxKey = iota
	clientIDKey
)

// WithRunAudit tags ctx so model calls made under it attribute their
// audit rows to the run and client.
func WithRunAudit(ctx context.Context, runID, clientID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, runIDKey, runID)
	return context.WithValue(ctx, clientIDKey, clientID)
}

func RunIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(runIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func ClientIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(clientIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
