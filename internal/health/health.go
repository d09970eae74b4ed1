package health

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName имя сервиса в протоколе проверки здоровья gRPC
const ServiceName = "task_manager"

// Server gRPC сервер проверки здоровья для супервизора процессов
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *logrus.Logger
}

// NewServer создаёт сервер в состоянии SERVING
func NewServer(logger *logrus.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(true)
	return s
}

// SetServing переключает статус сервиса. Миссия, упавшая в состояние
// ошибки, переводит узел в NOT_SERVING.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn("Узел переведён в состояние NOT_SERVING")
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Check возвращает текущий статус сервиса
func (s *Server) Check() healthpb.HealthCheckResponse_ServingStatus {
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}

// Serve обслуживает gRPC запросы на lis до вызова Stop
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Infof("gRPC сервер проверки здоровья запущен на %s", lis.Addr())
	return s.grpc.Serve(lis)
}

// Stop останавливает сервер
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Serving сообщает, обслуживает ли узел запросы
func (s *Server) Serving() bool {
	return s.Check() == healthpb.HealthCheckResponse_SERVING
}
