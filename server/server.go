// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/explorer/base/log"
	"github.com/gorse-io/explorer/config"
	"github.com/gorse-io/explorer/logics"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const apiDocsPath = "/apidocs.json"

// Server serves the REST API, the OpenAPI document and Prometheus metrics.
type Server struct {
	RestServer
	container  *restful.Container
	httpServer *http.Server
}

func NewServer(cfg *config.Config, engine *logics.Engine) *Server {
	s := &Server{
		RestServer: RestServer{
			Config:     cfg,
			Engine:     engine,
			WebService: new(restful.WebService),
		},
		container: restful.NewContainer(),
	}
	s.CreateWebService()
	s.container.Add(s.WebService)
	s.container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: s.container.RegisteredWebServices(),
		APIPath:     apiDocsPath,
	}))
	s.container.Handle("/metrics", promhttp.Handler())
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: s.container,
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.container
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s", s.httpServer.Addr)))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Trace(s.httpServer.Shutdown(ctx))
}
