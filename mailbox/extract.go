package mailbox

import (
	"regexp"
	"strings"
)

// UnresolvedRecipient marks a harvested code whose true recipient could not
// be recovered from the headers. The batch continues; the consumer decides
// what to do with unattributed codes.
const UnresolvedRecipient = "unresolved"

var (
	// Marker phrases that commonly precede the code in the message body.
	markerCodeRe = regexp.MustCompile(`(?i)(?:your code is|verification code|c[óo]digo(?: de verifica[çc][ãa]o)?(?: [ée])?)\D{0,20}?(\d{6})`)
	// Quoted-printable soft breaks leave a bare "=" glued to the digits.
	softBreakCodeRe = regexp.MustCompile(`=\s*(\d{6})\b`)
	bareCodeRe      = regexp.MustCompile(`\b(\d{6})\b`)

	forwardedForRe = regexp.MustCompile(`(?mi)^X-X-Forwarded-For:[ \t]*(.+)$`)
	deliveredToRe  = regexp.MustCompile(`(?mi)^Delivered-To:[ \t]*(.+)$`)
	toAngleRe      = regexp.MustCompile(`(?mi)^To:.*<([^>]+)>`)
)

// ExtractCode finds the 6-digit code in a decoded message body: first a
// known marker phrase, then a soft-break artifact, then the first bare
// 6-digit run. Returns "" when the body carries no code.
func ExtractCode(body string) string {
	for _, re := range []*regexp.Regexp{markerCodeRe, softBreakCodeRe, bareCodeRe} {
		if m := re.FindStringSubmatch(body); m != nil {
			return m[1]
		}
	}
	return ""
}

// resolver is one step of the recipient-resolution chain. Each step is a
// pure function over the raw header text and reports "no match" instead of
// failing, so the chain composes.
type resolver func(header, housekeeping string) (string, bool)

var recipientChain = []resolver{
	resolveForwardedFor,
	resolveDeliveredTo,
	resolveToAngle,
}

// ResolveRecipient walks the header heuristics in priority order:
// forwarding header, then Delivered-To, then the To angle-bracket address.
// The relay's housekeeping address is stripped from whatever resolves.
// Returns UnresolvedRecipient when nothing matches.
func ResolveRecipient(header, housekeeping string) string {
	for _, resolve := range recipientChain {
		if addr, ok := resolve(header, housekeeping); ok {
			if cleaned := stripHousekeeping(addr, housekeeping); cleaned != "" {
				return cleaned
			}
		}
	}
	return UnresolvedRecipient
}

// resolveForwardedFor picks the first forwarded address that contains "@"
// and is not the relay's own housekeeping address.
func resolveForwardedFor(header, housekeeping string) (string, bool) {
	m := forwardedForRe.FindStringSubmatch(header)
	if m == nil {
		return "", false
	}
	for _, candidate := range strings.Split(m[1], ",") {
		candidate = strings.TrimSpace(candidate)
		if strings.Contains(candidate, "@") && !strings.EqualFold(candidate, housekeeping) {
			return candidate, true
		}
	}
	return "", false
}

func resolveDeliveredTo(header, _ string) (string, bool) {
	m := deliveredToRe.FindStringSubmatch(header)
	if m == nil {
		return "", false
	}
	addr := strings.TrimSpace(m[1])
	return addr, addr != ""
}

func resolveToAngle(header, _ string) (string, bool) {
	m := toAngleRe.FindStringSubmatch(header)
	if m == nil {
		return "", false
	}
	addr := strings.TrimSpace(m[1])
	return addr, addr != ""
}

// stripHousekeeping removes any residual occurrence of the relay's own
// address from a resolved recipient string.
func stripHousekeeping(addr, housekeeping string) string {
	if housekeeping == "" {
		return strings.TrimSpace(addr)
	}
	lower := strings.ToLower(addr)
	needle := strings.ToLower(housekeeping)
	for {
		i := strings.Index(lower, needle)
		if i < 0 {
			break
		}
		addr = addr[:i] + addr[i+len(needle):]
		lower = lower[:i] + lower[i+len(needle):]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(addr), ","))
}
