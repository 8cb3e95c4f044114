package messaging

import (
	"context"
	"sort"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/models"
)

// UnreadConversations keeps the entries with unread messages and a last
// message, newest first. The input is not modified.
func UnreadConversations(list []models.PatientWithLastMessage) []models.PatientWithLastMessage {
	out := make([]models.PatientWithLastMessage, 0, len(list))
	for _, p := range list {
		if p.UnreadCount > 0 && p.LastMessage != nil {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out
}

// TotalUnread sums the unread counts of the overview.
func TotalUnread(list []models.PatientWithLastMessage) int {
	n := 0
	for _, p := range list {
		n += p.UnreadCount
	}
	return n
}

// CurrentDoctor resolves the doctor record behind an authenticated user.
func (g *Gateway) CurrentDoctor(ctx context.Context, userID string) (models.DoctorProfile, error) {
	d, err := g.store.DoctorByUserID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return models.DoctorProfile{}, err
		}
		return models.DoctorProfile{}, apperror.Remote("load doctor", err)
	}
	return d, nil
}
