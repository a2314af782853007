package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcpforge/server/pkg/mcp"
	"github.com/mcpforge/server/pkg/verify"
)

// VerificationMode controls how the type-verification unit reacts to an
// unverified type reference in a tool's source.
type VerificationMode string

const (
	VerificationDisabled VerificationMode = "disabled"
	VerificationWarning  VerificationMode = "warning"
	VerificationStrict   VerificationMode = "strict"
)

// SourceLookup resolves a tool name to the source text and file path that
// should be scanned for type references. ok is false when no source is
// registered for toolName, in which case the unit does nothing.
type SourceLookup func(toolName string) (code, filePath string, ok bool)

// NewTypeVerificationUnit blocks (in VerificationStrict) or warns (in
// VerificationWarning) calls to tools whose source references a type not yet
// marked verified in cache. member accesses are checked as "Type.Member";
// bare type references are checked as "Type".
func NewTypeVerificationUnit(order int, cache *verify.Cache, mode VerificationMode, lookup SourceLookup, logger *slog.Logger) *Unit {
	if logger == nil {
		logger = slog.Default()
	}

	return &Unit{
		Name:    "type-verification",
		Order:   order,
		Enabled: mode != VerificationDisabled,
		Before: func(ctx context.Context, toolName string, params map[string]interface{}) error {
			if mode == VerificationDisabled || lookup == nil {
				return nil
			}
			code, filePath, ok := lookup(toolName)
			if !ok {
				return nil
			}

			var unverified []verify.TypeReference
			for _, ref := range verify.UnverifiedTypesIn(code, filePath) {
				name := ref.TypeName
				if ref.MemberName != "" {
					name = ref.TypeName + "." + ref.MemberName
				}
				if !cache.IsVerified(name) && !cache.IsVerified(ref.TypeName) {
					unverified = append(unverified, ref)
				}
			}
			if len(unverified) == 0 {
				return nil
			}

			names := make([]string, len(unverified))
			for i, ref := range unverified {
				if ref.MemberName != "" {
					names[i] = ref.TypeName + "." + ref.MemberName
				} else {
					names[i] = ref.TypeName
				}
			}

			if mode == VerificationWarning {
				logger.Warn("unverified type references", "tool", toolName, "types", names)
				return nil
			}

			return mcp.NewFault(mcp.CodeTypeVerificationFailed,
				fmt.Sprintf("tool %q references unverified types: %v", toolName, names)).
				WithRecovery(
					"verify the referenced types against their current source",
					"call the verification API to mark them verified, then retry",
				)
		},
	}
}
