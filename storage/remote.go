package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskflow/domain"
)

const edmInt64 = "Edm.Int64"

// Remote is the authoritative task store. Each owner's collection lives in
// one partition; the task id is the row key.
type Remote struct {
	tasks *aztables.Client
}

// NewRemote creates a Remote from the given connection string.
func NewRemote(connStr, tasksTable string) (*Remote, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Remote{tasks: svc.NewClient(tasksTable)}, nil
}

type taskEntity struct {
	aztables.Entity
	Title           string `json:"Title"`
	Description     string `json:"Description,omitempty"`
	DueDate         int64  `json:"DueDate,string"`
	DueDateType     string `json:"DueDate@odata.type"`
	CreatedDate     int64  `json:"CreatedDate,string"`
	CreatedDateType string `json:"CreatedDate@odata.type"`
	Done            bool   `json:"Done"`
	RemindMe        bool   `json:"RemindMe"`
}

func toEntity(owner domain.Owner, t domain.Task) taskEntity {
	return taskEntity{
		Entity:          aztables.Entity{PartitionKey: owner.Key(), RowKey: t.ID},
		Title:           t.Title,
		Description:     t.Description,
		DueDate:         t.DueDate,
		DueDateType:     edmInt64,
		CreatedDate:     t.CreatedDate,
		CreatedDateType: edmInt64,
		Done:            t.Done,
		RemindMe:        t.RemindMe,
	}
}

func fromEntity(ent taskEntity) domain.Task {
	return domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		DueDate:     ent.DueDate,
		CreatedDate: ent.CreatedDate,
		Done:        ent.Done,
		RemindMe:    ent.RemindMe,
	}
}

func activeFilter(owner domain.Owner) string {
	return fmt.Sprintf("PartitionKey eq '%s'", owner.Key())
}

func overdueFilter(owner domain.Owner, cutoff int64) string {
	return fmt.Sprintf("PartitionKey eq '%s' and Done eq false and DueDate lt %dL", owner.Key(), cutoff)
}

func (r *Remote) list(ctx context.Context, filter string) ([]domain.Task, error) {
	pager := r.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, fromEntity(ent))
		}
	}
	return tasks, nil
}

// ListActive retrieves all tasks for the provided owner.
func (r *Remote) ListActive(ctx context.Context, owner domain.Owner) ([]domain.Task, error) {
	return r.list(ctx, activeFilter(owner))
}

// Upsert replaces the whole entity rather than merging fields.
func (r *Remote) Upsert(ctx context.Context, owner domain.Owner, task domain.Task) error {
	payload, err := json.Marshal(toEntity(owner, task))
	if err != nil {
		return err
	}
	_, err = r.tasks.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// Delete removes the entity. A 404 from the service is swallowed so deletes
// stay idempotent under concurrent sweeps.
func (r *Remote) Delete(ctx context.Context, owner domain.Owner, id string) error {
	_, err := r.tasks.DeleteEntity(ctx, owner.Key(), id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil
		}
		return err
	}
	return nil
}

// QueryOverdueIncomplete runs the range filter on the service side.
func (r *Remote) QueryOverdueIncomplete(ctx context.Context, owner domain.Owner, cutoff int64) ([]domain.Task, error) {
	return r.list(ctx, overdueFilter(owner, cutoff))
}
