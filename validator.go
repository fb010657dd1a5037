package goToken

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goToken/revocation"
)

// Validator is an extension check run after baseline validation accepted a token. Returning an
// error rejects the token.
type Validator interface {
	Validate(ctx context.Context, p *Principal, policyName, tenantID string) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, p *Principal, policyName, tenantID string) error

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, p *Principal, policyName, tenantID string) error {
	return f(ctx, p, policyName, tenantID)
}

// ValidatorChain runs validators sequentially in registration order. The first rejection stops
// the chain.
type ValidatorChain struct {
	validators []Validator
}

// NewValidatorChain returns a chain over vs. Nil entries are skipped.
func NewValidatorChain(vs ...Validator) *ValidatorChain {
	c := &ValidatorChain{validators: make([]Validator, 0, len(vs))}
	for _, v := range vs {
		if v != nil {
			c.validators = append(c.validators, v)
		}
	}
	return c
}

// Len returns the number of registered validators.
func (c *ValidatorChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.validators)
}

// Run executes the chain against p. Every rejection surfaces as ErrInvalidToken carrying the
// validator message, panics included; context errors become ErrCancelled. A typed *Error of
// another kind keeps its reason and cause but not its kind.
func (c *ValidatorChain) Run(ctx context.Context, p *Principal, policyName, tenantID string) error {
	if c == nil {
		return nil
	}
	for i, v := range c.validators {
		if err := ctx.Err(); err != nil {
			return cancelled(ctx, err)
		}
		if err := runValidator(ctx, v, p, policyName, tenantID); err != nil {
			return classifyValidatorError(ctx, i, err)
		}
	}
	return nil
}

func runValidator(ctx context.Context, v Validator, p *Principal, policyName, tenantID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(KindInvalidToken, fmt.Sprintf("validator panic: %v", r), nil)
		}
	}()
	return v.Validate(ctx, p, policyName, tenantID)
}

func classifyValidatorError(ctx context.Context, index int, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		switch typed.Kind {
		case KindInvalidToken, KindCancelled:
			return err
		}
		reason := typed.Reason
		if reason == "" {
			reason = typed.Kind.String()
		}
		return newError(KindInvalidToken, reason, typed.Err)
	}
	if isContextError(err) {
		return cancelled(ctx, err)
	}
	reason := strings.TrimSpace(err.Error())
	if reason == "" {
		reason = fmt.Sprintf("rejected by validator %d", index)
	}
	return newError(KindInvalidToken, reason, err)
}

// ReasonTokenRevoked is the Error.Reason of tokens rejected by RevocationValidator.
const ReasonTokenRevoked = "token revoked"

// ErrTokenRevoked matches rejections by RevocationValidator. It also matches ErrInvalidToken.
var ErrTokenRevoked = &Error{Kind: KindInvalidToken, Reason: ReasonTokenRevoked}

// RevocationValidator rejects tokens whose jti is on a deny list. With a nil store it accepts
// everything, which makes it a valid inert chain member.
type RevocationValidator struct {
	store revocation.Store
}

// NewRevocationValidator checks principals against store.
func NewRevocationValidator(store revocation.Store) *RevocationValidator {
	return &RevocationValidator{store: store}
}

// Validate rejects p with ErrTokenRevoked when its jti is on the deny list.
func (v *RevocationValidator) Validate(ctx context.Context, p *Principal, _, _ string) error {
	if v == nil || v.store == nil || p == nil || p.ID == "" {
		return nil
	}
	revoked, err := v.store.IsRevoked(ctx, p.ID)
	if err != nil {
		if isContextError(err) {
			return err
		}
		return newError(KindInvalidToken, "revocation check failed", err)
	}
	if revoked {
		return newError(KindInvalidToken, ReasonTokenRevoked, nil)
	}
	return nil
}
