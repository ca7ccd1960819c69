package admin

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

var errMissingJTI = errors.New("jti is required when token is not provided")

type RevocationLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRevocationLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RevocationLogic {
	return &RevocationLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

// RevokeToken accepts either a bare jti or a full token string (from
// which the jti and exp claims are read without verifying the
// signature — revocation must work even for a token whose signing key
// has since been retired).
func (l *RevocationLogic) RevokeToken(req *RevokeTokenRequest) error {
	jti := req.JTI
	expiresAt := time.Now().Add(24 * time.Hour)

	if req.Token != "" {
		parser := jwt.NewParser()
		claims := jwt.MapClaims{}
		if _, _, err := parser.ParseUnverified(req.Token, claims); err != nil {
			return gatewayerr.New(gatewayerr.KindInput, err)
		}
		if v, ok := claims["jti"].(string); ok {
			jti = v
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			expiresAt = exp.Time
		}
	}
	if jti == "" {
		return gatewayerr.New(gatewayerr.KindInput, errMissingJTI)
	}
	return l.svcCtx.Revocation.RevokeToken(l.ctx, jti, expiresAt, req.Reason)
}

func (l *RevocationLogic) RevokeUser(req *RevokeUserRequest) error {
	if err := validate(req); err != nil {
		return err
	}
	now := time.Now().UTC()
	return l.svcCtx.Revocation.RevokeUser(l.ctx, req.UserID, now, now.Add(l.svcCtx.Config.Token.MaxLifetime))
}

func (l *RevocationLogic) IsLocked(scopeKey string) (*LockoutStatusResponse, error) {
	locked, err := l.svcCtx.Lockout.IsLocked(l.ctx, scopeKey)
	if err != nil {
		return nil, err
	}
	return &LockoutStatusResponse{Key: scopeKey, Locked: locked}, nil
}

// ForceLockout locks a key out immediately, used by the admin API when
// an operator wants to gate a caller without waiting for the failure
// threshold to accumulate naturally.
func (l *RevocationLogic) ForceLockout(scopeKey, reason string) error {
	return l.svcCtx.Lockout.RecordLockout(l.ctx, scopeKey, reason)
}
