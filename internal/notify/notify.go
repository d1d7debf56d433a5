// Package notify carries the operation outcome messages shown to admin
// users after mutations. Handlers attach the message to the API response;
// the log sink records it server side.
package notify

import (
	"context"
	"log/slog"
)

// Notifier receives operation outcome notifications.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// Messages displayed after admin mutations.
const (
	MsgEnseignantCreated = "Enseignant ajouté avec succès"
	MsgEnseignantUpdated = "Enseignant modifié avec succès"
	MsgEnseignantDeleted = "Enseignant supprimé avec succès"
	MsgPhotoCreated      = "Photo ajoutée avec succès"
	MsgPhotoUpdated      = "Photo modifiée avec succès"
	MsgPhotoDeleted      = "Photo supprimée avec succès"
	MsgHoraireCreated    = "Horaire publié avec succès"
	MsgHoraireUpdated    = "Horaire modifié avec succès"
	MsgHoraireDeleted    = "Horaire supprimé avec succès"
	MsgOperationFailed   = "Une erreur est survenue. Veuillez réessayer."
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier on the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(ctx context.Context, message string) {
	n.logger.InfoContext(ctx, "notification", slog.String("level", "success"), slog.String("message", message))
}

func (n *LogNotifier) Error(ctx context.Context, message string) {
	n.logger.WarnContext(ctx, "notification", slog.String("level", "error"), slog.String("message", message))
}

// Recorder collects notifications for tests.
type Recorder struct {
	Successes []string
	Errors    []string
}

func (r *Recorder) Success(ctx context.Context, message string) {
	r.Successes = append(r.Successes, message)
}

func (r *Recorder) Error(ctx context.Context, message string) {
	r.Errors = append(r.Errors, message)
}

// compile-time interface checks
var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*Recorder)(nil)
)
