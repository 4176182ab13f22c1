package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func setupTestGin() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doRequest(router *gin.Engine, remoteAddr string) int {
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_Allow(t *testing.T) {
	router := setupTestGin()
	router.Use(RateLimiter(rate.Limit(1), 1, 0))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	if code := doRequest(router, "127.0.0.1:12345"); code != http.StatusOK {
		t.Errorf("Expected first request to succeed, got status %d", code)
	}
	if code := doRequest(router, "127.0.0.1:12345"); code != http.StatusTooManyRequests {
		t.Errorf("Expected second request to be rate limited, got status %d", code)
	}
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	router := setupTestGin()
	router.Use(RateLimiter(rate.Limit(1), 1, 0))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	if code := doRequest(router, "127.0.0.1:12345"); code != http.StatusOK {
		t.Errorf("Expected request from first IP to succeed, got status %d", code)
	}
	if code := doRequest(router, "127.0.0.2:12345"); code != http.StatusOK {
		t.Errorf("Expected request from second IP to succeed, got status %d", code)
	}
}

func TestDistributedRateLimiter(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewDistributedRateLimiter(client)
	router := setupTestGin()
	router.Use(limiter.CreateMiddleware("test", &RateLimit{Rate: 2, Window: time.Minute, KeyFunc: IPKeyFunc}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	for i := 0; i < 2; i++ {
		if code := doRequest(router, "10.0.0.1:1000"); code != http.StatusOK {
			t.Fatalf("Expected request %d to succeed, got status %d", i+1, code)
		}
	}
	if code := doRequest(router, "10.0.0.1:1000"); code != http.StatusTooManyRequests {
		t.Errorf("Expected third request to be rate limited, got status %d", code)
	}
	if code := doRequest(router, "10.0.0.2:1000"); code != http.StatusOK {
		t.Errorf("Expected other IP to pass, got status %d", code)
	}
}

func TestDistributedRateLimiter_FailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	limiter := NewDistributedRateLimiter(client)
	router := setupTestGin()
	router.Use(limiter.CreateMiddleware("test", &RateLimit{Rate: 1, Window: time.Minute, KeyFunc: IPKeyFunc}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	for i := 0; i < 3; i++ {
		if code := doRequest(router, "10.0.0.1:1000"); code != http.StatusOK {
			t.Errorf("Expected request to pass while redis is down, got status %d", code)
		}
	}
}
