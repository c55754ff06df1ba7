package validation

import (
	"fmt"
	"strings"

	"github.com/docker/go-connections/nat"

	"github.com/artpar/deploysmith/internal/core/domain"
)

// =============================================================================
// Dockerfile Checks
// =============================================================================

// Rule names reported for container files.
const (
	RuleEmpty         = "empty"
	RuleFrom          = "from"
	RuleNonRoot       = "non-root-user"
	RuleHealthcheck   = "healthcheck"
	RuleExpose        = "expose"
	RuleExposeInvalid = "expose-invalid"
)

type instruction struct {
	keyword string
	args    string
}

// Dockerfile checks a generated container file against the requirements the
// prompt asked for. The profile supplies the expected port for web apps.
func Dockerfile(content string, profile *domain.RepositoryProfile) []Finding {
	instructions := parseInstructions(content)
	if len(instructions) == 0 {
		return []Finding{{Rule: RuleEmpty, Severity: SeverityError, Message: "container file has no instructions"}}
	}

	var findings []Finding
	if instructions[0].keyword != "FROM" && instructions[0].keyword != "ARG" {
		findings = append(findings, Finding{
			Rule:     RuleFrom,
			Severity: SeverityError,
			Message:  fmt.Sprintf("first instruction is %s, expected FROM", instructions[0].keyword),
		})
	} else if !hasInstruction(instructions, "FROM") {
		findings = append(findings, Finding{Rule: RuleFrom, Severity: SeverityError, Message: "missing FROM instruction"})
	}

	if user := lastArgs(instructions, "USER"); user == "" {
		findings = append(findings, Finding{Rule: RuleNonRoot, Severity: SeverityWarning, Message: "no USER instruction; container runs as root"})
	} else if isRoot(user) {
		findings = append(findings, Finding{Rule: RuleNonRoot, Severity: SeverityWarning, Message: "final USER is root"})
	}

	if !hasInstruction(instructions, "HEALTHCHECK") {
		findings = append(findings, Finding{Rule: RuleHealthcheck, Severity: SeverityWarning, Message: "no HEALTHCHECK instruction"})
	}

	if profile != nil && profile.IsWebApp {
		findings = append(findings, checkExpose(instructions, profile.DefaultPort)...)
	}
	return findings
}

func checkExpose(instructions []instruction, want int) []Finding {
	var findings []Finding
	seen := false
	matched := false
	for _, in := range instructions {
		if in.keyword != "EXPOSE" {
			continue
		}
		seen = true
		for _, token := range strings.Fields(in.args) {
			if strings.HasPrefix(token, "$") {
				continue
			}
			_, portSpec := nat.SplitProtoPort(token)
			start, end, err := nat.ParsePortRange(portSpec)
			if err != nil {
				findings = append(findings, Finding{
					Rule:     RuleExposeInvalid,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("EXPOSE %s is not a valid port", token),
				})
				continue
			}
			if uint64(want) >= start && uint64(want) <= end {
				matched = true
			}
		}
	}

	switch {
	case !seen:
		findings = append(findings, Finding{
			Rule:     RuleExpose,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("web application but no EXPOSE instruction (expected %d)", want),
		})
	case !matched:
		findings = append(findings, Finding{
			Rule:     RuleExpose,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("EXPOSE does not include the detected port %d", want),
		})
	}
	return findings
}

// parseInstructions reads keywords and arguments, joining continuation lines
// and skipping comments.
func parseInstructions(content string) []instruction {
	var out []instruction
	var pending strings.Builder
	flush := func() {
		line := strings.TrimSpace(pending.String())
		pending.Reset()
		if line == "" {
			return
		}
		keyword, args, _ := strings.Cut(line, " ")
		out = append(out, instruction{keyword: strings.ToUpper(keyword), args: strings.TrimSpace(args)})
	}

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, "\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			pending.WriteString(" ")
			continue
		}
		pending.WriteString(line)
		flush()
	}
	flush()
	return out
}

func hasInstruction(instructions []instruction, keyword string) bool {
	for _, in := range instructions {
		if in.keyword == keyword {
			return true
		}
	}
	return false
}

func lastArgs(instructions []instruction, keyword string) string {
	args := ""
	for _, in := range instructions {
		if in.keyword == keyword {
			args = in.args
		}
	}
	return args
}

func isRoot(user string) bool {
	name, _, _ := strings.Cut(user, ":")
	return name == "root" || name == "0"
}
