package daemonserver

import (
	"github.com/prometheus/client_golang/prometheus"

	"lumen-chat/go-client/internal/adapters/rpc"
	"lumen-chat/go-client/internal/composition/daemonservice"
)

// NewRPCServerWithOptions wires the sync service and RPC transport.
func NewRPCServerWithOptions(rpcAddr, configPath, dataDir string) (*rpc.Server, error) {
	svc, cfg, err := daemonservice.Build(configPath, dataDir, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	if rpcAddr == "" {
		rpcAddr = cfg.RPCAddr
	}
	return rpc.NewServerWithService(rpcAddr, svc), nil
}
