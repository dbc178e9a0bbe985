package usecase

import (
	"errors"

	"notifyhub/infrastructure/ws"
	"notifyhub/internal/entity"
)

var ErrInvalidJobUpdate = errors.New("job id and status are required")

// Job frames carry the job fields at the top level next to the type.
type jobUpdateFrame struct {
	Type string `json:"type"`
	entity.JobUpdate
}

type jobStatsFrame struct {
	Type string `json:"type"`
	entity.JobStats
}

type JobUsecase interface {
	PublishUpdate(update entity.JobUpdate) error
	PublishStats(stats entity.JobStats)
}

type jobUsecase struct {
	dispatcher ws.IDispatcher
}

func NewJobUsecase(dispatcher ws.IDispatcher) JobUsecase {
	return &jobUsecase{
		dispatcher: dispatcher,
	}
}

func (u *jobUsecase) PublishUpdate(update entity.JobUpdate) error {
	if update.Id == "" || update.Status == "" {
		return ErrInvalidJobUpdate
	}
	u.dispatcher.BroadcastToAdmins(jobUpdateFrame{Type: "job_update", JobUpdate: update})
	return nil
}

func (u *jobUsecase) PublishStats(stats entity.JobStats) {
	u.dispatcher.BroadcastToAdmins(jobStatsFrame{Type: "job_stats_update", JobStats: stats})
}
