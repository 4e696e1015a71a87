package worker

import (
	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/queue"
	"github.com/ammar0144/socialcache/pkg/repository"
)

// Workers holds the collaborators of every job handler.
type Workers struct {
	store  *repository.Store
	mailer Mailer
	log    zerolog.Logger
}

// New creates the job handlers. A nil mailer logs emails instead of
// sending them.
func New(store *repository.Store, mailer Mailer, log zerolog.Logger) *Workers {
	if mailer == nil {
		mailer = NewLogMailer(log)
	}
	return &Workers{store: store, mailer: mailer, log: log}
}

// Register binds a handler for every job name of every queue in reg.
func (w *Workers) Register(reg *queue.Registry) {
	w.registerUser(reg.Queue(queue.DomainAuth), reg.Queue(queue.DomainUser))
	w.registerPost(reg.Queue(queue.DomainPost), reg.Queue(queue.DomainComment))
	w.registerReaction(reg.Queue(queue.DomainReaction))
	w.registerFollower(reg.Queue(queue.DomainFollower))
	w.registerChat(reg.Queue(queue.DomainChat))
	w.registerNotification(reg.Queue(queue.DomainNotification))
	w.registerImage(reg.Queue(queue.DomainImage))
	w.registerEmail(reg.Queue(queue.DomainEmail))
}

// settle turns a stale write into success: a newer version already reached
// the store, so retrying could never apply this one.
func (w *Workers) settle(job *queue.Job, err error) error {
	if repository.IsStale(err) {
		w.log.Debug().Err(err).Str("job", string(job.Name)).Str("job_id", job.ID).Msg("stale job skipped")
		return nil
	}
	return err
}

// inserted logs redeliveries whose row was already present.
func (w *Workers) inserted(job *queue.Job, created bool, err error) error {
	if err == nil && !created {
		w.log.Debug().Str("job", string(job.Name)).Str("job_id", job.ID).Msg("already persisted")
	}
	return err
}
