package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Fraud score weights and thresholds. The score is capped at 100;
// suspicious starts at 50 and forces manual review plus a longer
// distribution cooldown.
const (
	fraudScoreSameIP          = 30
	fraudScoreDisposableEmail = 25
	fraudScoreFastSignup      = 20
	fraudScoreSharedDevice    = 25

	fraudScoreCap        = 100
	suspiciousThreshold  = 50
	highRiskThreshold    = 75
	fastSignupSeconds    = 30

	cooldownLowRisk  = 48 * time.Hour
	cooldownSuspect  = 96 * time.Hour
	cooldownHighRisk = 168 * time.Hour
)

// disposableEmailDomains is the static blocklist checked at attribution
// time. Kept short on purpose; the long tail is caught by the other
// signals.
var disposableEmailDomains = map[string]bool{
	"mailinator.com":     true,
	"guerrillamail.com":  true,
	"10minutemail.com":   true,
	"tempmail.com":       true,
	"temp-mail.org":      true,
	"throwawaymail.com":  true,
	"yopmail.com":        true,
	"getnada.com":        true,
	"trashmail.com":      true,
	"sharklasers.com":    true,
	"dispostable.com":    true,
	"maildrop.cc":        true,
	"fakeinbox.com":      true,
	"mintemail.com":      true,
	"spamgourmet.com":    true,
}

// SecuritySignals are the raw inputs collected at signup.
type SecuritySignals struct {
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string // optional; derived from UA:IP when empty
	Email             string
	LinkClickedAt     *time.Time
	SignupAt          time.Time
}

// FraudAssessment is the computed verdict over the signals.
type FraudAssessment struct {
	Score               int
	IsSuspicious        bool
	Reasons             []string
	EmailDomain         string
	IsDisposableEmail   bool
	DeviceFingerprint   string
	TimeToSignupSeconds *int64
}

// DeviceFingerprint hashes "UA:IP" when the client did not supply one.
func DeviceFingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + ":" + ip))
	return hex.EncodeToString(sum[:])
}

// EmailDomain extracts the lower-cased domain part of an address.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// IsDisposableDomain checks the static blocklist.
func IsDisposableDomain(domain string) bool {
	return disposableEmailDomains[domain]
}

// AssessFraud scores the signals against the referrer's history.
// sameIPAsLastReferral and fingerprintSeen are looked up by the caller so
// this stays a pure computation over its inputs.
func AssessFraud(sig SecuritySignals, sameIPAsLastReferral, fingerprintSeen bool) FraudAssessment {
	a := FraudAssessment{
		EmailDomain:       EmailDomain(sig.Email),
		DeviceFingerprint: sig.DeviceFingerprint,
	}
	if a.DeviceFingerprint == "" {
		a.DeviceFingerprint = DeviceFingerprint(sig.UserAgent, sig.IPAddress)
	}

	if sameIPAsLastReferral {
		a.Score += fraudScoreSameIP
		a.Reasons = append(a.Reasons, "same IP as referrer's most recent referral")
	}

	a.IsDisposableEmail = IsDisposableDomain(a.EmailDomain)
	if a.IsDisposableEmail {
		a.Score += fraudScoreDisposableEmail
		a.Reasons = append(a.Reasons, "disposable email domain")
	}

	if sig.LinkClickedAt != nil {
		secs := int64(sig.SignupAt.Sub(*sig.LinkClickedAt).Seconds())
		a.TimeToSignupSeconds = &secs
		if secs >= 0 && secs < fastSignupSeconds {
			a.Score += fraudScoreFastSignup
			a.Reasons = append(a.Reasons, fmt.Sprintf("signup %ds after link click", secs))
		}
	}

	if fingerprintSeen {
		a.Score += fraudScoreSharedDevice
		a.Reasons = append(a.Reasons, "device fingerprint seen on another referral")
	}

	if a.Score > fraudScoreCap {
		a.Score = fraudScoreCap
	}
	a.IsSuspicious = a.Score >= suspiciousThreshold
	return a
}

// distributionCooldown maps the score to the delay before rewards may be
// distributed: 48h baseline, 96h once suspicious, 168h for high risk.
func distributionCooldown(score int) time.Duration {
	switch {
	case score >= highRiskThreshold:
		return cooldownHighRisk
	case score >= suspiciousThreshold:
		return cooldownSuspect
	default:
		return cooldownLowRisk
	}
}
