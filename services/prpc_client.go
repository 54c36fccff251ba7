package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"podagg/config"
	"podagg/models"
)

// PRPCClient speaks JSON-RPC 2.0 to a pod's /rpc endpoint. Each call is a
// single attempt; retries and deadlines belong to the caller.
type PRPCClient struct {
	address    string
	httpClient *http.Client
}

func NewPRPCClient(cfg *config.Config) *PRPCClient {
	return &PRPCClient{
		address: cfg.UpstreamAddress(),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Address is the host:port this client targets.
func (c *PRPCClient) Address() string {
	return c.address
}

func (c *PRPCClient) CallPRPC(ctx context.Context, address, method string, params interface{}) (*models.RPCResponse, error) {
	reqBody := models.RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/rpc", address)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d from %s %s", ErrInvalidResponse, resp.StatusCode, method, address)
	}

	var rpcResp models.RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrInvalidResponse, err)
	}

	if rpcResp.Error != nil {
		return &rpcResp, fmt.Errorf("%w: rpc error %d: %s", ErrInvalidResponse, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return &rpcResp, nil
}

func (c *PRPCClient) GetVersion(ctx context.Context) (*models.VersionResponse, error) {
	resp, err := c.CallPRPC(ctx, c.address, "get-version", nil)
	if err != nil {
		return nil, err
	}

	var verResp models.VersionResponse
	if err := json.Unmarshal(resp.Result, &verResp); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal version result: %v", ErrInvalidResponse, err)
	}
	return &verResp, nil
}

// GetPodsWithStats returns the raw result of get-pods-with-stats. Its shape is
// checked by ParsePods.
func (c *PRPCClient) GetPodsWithStats(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.CallPRPC(ctx, c.address, "get-pods-with-stats", nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrInvalidResponse)
	}
	return resp.Result, nil
}
