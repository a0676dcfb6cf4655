package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-media-service/http/controller"
)

type Middlewares struct {
	CORSMiddleware gin.HandlerFunc
	RequestLogger  gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	cors := CORSMiddleware(ctrl.Config.EnvConfig)
	requestLogger := RequestLogger(ctrl.Infra.Logger)

	return &Middlewares{
		CORSMiddleware: cors,
		RequestLogger:  requestLogger,
	}, nil
}
