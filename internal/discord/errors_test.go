package discord

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func restErr(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: code},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassUnknown},
		{"unknown channel", restErr(http.StatusNotFound, 10003), ClassNotFound},
		{"unknown guild", restErr(http.StatusNotFound, 10004), ClassNotFound},
		{"unknown member", restErr(http.StatusNotFound, 10007), ClassNotFound},
		{"unknown role", restErr(http.StatusNotFound, 10011), ClassNotFound},
		{"unknown user", restErr(http.StatusNotFound, 10013), ClassNotFound},
		{"missing access", restErr(http.StatusForbidden, 50001), ClassPermission},
		{"missing permissions", restErr(http.StatusForbidden, 50013), ClassPermission},
		{"rate limited", restErr(http.StatusTooManyRequests, 0), ClassTransient},
		{"server error", restErr(http.StatusBadGateway, 0), ClassTransient},
		{"forbidden no code", restErr(http.StatusForbidden, 0), ClassPermission},
		{"not found no code", restErr(http.StatusNotFound, 0), ClassNotFound},
		{"bad request", restErr(http.StatusBadRequest, 0), ClassUnknown},
		{"rate limit struct", &discordgo.RateLimitError{}, ClassTransient},
		{"plain error", errors.New("boom"), ClassUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassifyNilMessage(t *testing.T) {
	err := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	assert.Equal(t, ClassPermission, Classify(err))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "permission", ClassPermission.String())
	assert.Equal(t, "not_found", ClassNotFound.String())
	assert.Equal(t, "unknown", ClassUnknown.String())
}

func TestIsCapacityLimit(t *testing.T) {
	assert.True(t, IsCapacityLimit(restErr(http.StatusBadRequest, 30005)))
	assert.True(t, IsCapacityLimit(restErr(http.StatusBadRequest, 30013)))
	assert.False(t, IsCapacityLimit(restErr(http.StatusForbidden, 50013)))
	assert.False(t, IsCapacityLimit(errors.New("boom")))
	assert.False(t, IsCapacityLimit(nil))
}
