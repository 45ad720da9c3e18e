package pkg

import "github.com/google/uuid"

func GenerateRoomID() string {
	return uuid.NewString()
}

func GenerateTicketID() string {
	return uuid.NewString()
}

func GenerateConnectionID() string {
	return uuid.NewString()
}

// GenerateNewSessionID - id for anonymous players without a session cookie.
func GenerateNewSessionID() string {
	return uuid.NewString()
}

func GenerateBotID() string {
	return uuid.NewString()[:8]
}
