package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

type HealthChecker struct {
	infra Infrastructure
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{
		infra: infra,
	}
}

// check pings every dependency concurrently and reports each result by name
func (h *HealthChecker) check(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, 2)

	go func() {
		results <- result{"postgres", h.infra.Postgres().Ping(ctx)}
	}()
	go func() {
		results <- result{"redis", h.infra.Redis().Ping(ctx)}
	}()

	checks := make(map[string]error, 2)
	for i := 0; i < 2; i++ {
		r := <-results
		checks[r.name] = r.err
	}
	return checks
}

func (h *HealthChecker) Handler(c *gin.Context) {
	status := "pass"
	details := gin.H{}
	for name, err := range h.check(c.Request.Context()) {
		if err != nil {
			status = "fail"
			details[name] = fmt.Sprintf("fail: %v", err)
			continue
		}
		details[name] = "pass"
	}

	code := http.StatusOK
	if status != "pass" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": details,
	})
}
