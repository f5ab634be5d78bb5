package http

import (
	"github.com/go-telegram-login/internal/application/handshake"
	"github.com/go-telegram-login/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-telegram-login/internal/infrastructure/jwt"
	"github.com/go-telegram-login/internal/transport/ws"
)

// Deps holds all dependencies for the router.
type Deps struct {
	UserRepo    *dynamo.UserRepo
	Handshake   handshake.Service
	PushGateway *ws.Gateway
	JWTProvider *jwtinfra.Provider
}
