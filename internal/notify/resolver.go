package notify

import (
	"context"
	"fmt"
	"strings"
)

// IdentityResolver treats the user ID itself as the mail address. The
// identity provider in front of this service issues email-shaped user
// IDs; anything else is undeliverable.
type IdentityResolver struct{}

func (IdentityResolver) EmailFor(_ context.Context, userID string) (string, error) {
	if !strings.Contains(userID, "@") {
		return "", fmt.Errorf("user id %q is not a mail address", userID)
	}
	return userID, nil
}
