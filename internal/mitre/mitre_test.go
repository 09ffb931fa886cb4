package mitre

import (
	"testing"

	"github.com/decoyhq/agenttrap/internal/request"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name       string
		status     request.APIKeyStatus
		honeyToken bool
		sqli       bool
		want       string
	}{
		{
			name:   "correct key is credential use",
			status: request.APIKeyCorrect,
			want:   TechniqueUnsecuredCredentials,
		},
		{
			name:       "honey token is credential use",
			status:     request.APIKeyNone,
			honeyToken: true,
			want:       TechniqueUnsecuredCredentials,
		},
		{
			name:       "credential use outranks injection",
			status:     request.APIKeyNone,
			honeyToken: true,
			sqli:       true,
			want:       TechniqueUnsecuredCredentials,
		},
		{
			name:   "sql injection",
			status: request.APIKeyNone,
			sqli:   true,
			want:   TechniqueExploitPublicFacing,
		},
		{
			name:   "injection outranks wrong key",
			status: request.APIKeyWrong,
			sqli:   true,
			want:   TechniqueExploitPublicFacing,
		},
		{
			name:   "wrong key is brute force",
			status: request.APIKeyWrong,
			want:   TechniqueBruteForce,
		},
		{
			name:   "no signals defaults to probing",
			status: request.APIKeyNone,
			want:   TechniqueExploitPublicFacing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Map(tt.status, tt.honeyToken, tt.sqli); got != tt.want {
				t.Errorf("Map() = %s, want %s", got, tt.want)
			}
		})
	}
}
