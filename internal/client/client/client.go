package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// Ack is the server's acknowledgement of a push.
type Ack struct {
	Id      string
	Version int64
}

// CopyOptions controls POST /inspections/{id}/copy.
type CopyOptions struct {
	Type        models.InspectionType
	ScheduledAt *time.Time
	CopyImages  bool
	CopyText    bool
}

type Client interface {
	ListMine(ctx context.Context) ([]models.Inspection, error)
	PushInspection(ctx context.Context, in models.Inspection) (Ack, error)
	PushEntry(ctx context.Context, e models.Entry) (Ack, error)
	CopyInspection(ctx context.Context, id string, opts CopyOptions) (*models.Inspection, error)
	Health(ctx context.Context) error
}
