// Package mitre maps detector verdicts to MITRE ATT&CK technique ids.
package mitre

import "github.com/decoyhq/agenttrap/internal/request"

// Technique identifiers emitted on request records.
const (
	TechniqueUnsecuredCredentials = "T1552" // Unsecured Credentials
	TechniqueExploitPublicFacing  = "T1190" // Exploit Public-Facing Application
	TechniqueBruteForce           = "T1110" // Brute Force
)

// Map resolves one technique for a request, in priority order: credential
// use beats injection beats brute force; everything else is general probing.
func Map(apiKeyStatus request.APIKeyStatus, honeyTokenTriggered, sqlInjectionDetected bool) string {
	switch {
	case apiKeyStatus == request.APIKeyCorrect || honeyTokenTriggered:
		return TechniqueUnsecuredCredentials
	case sqlInjectionDetected:
		return TechniqueExploitPublicFacing
	case apiKeyStatus == request.APIKeyWrong:
		return TechniqueBruteForce
	default:
		return TechniqueExploitPublicFacing
	}
}
