package routecommon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteIDString(t *testing.T) {
	id := RouteID{Tenant: "team-a", Service: "payments", Env: "prod", Version: "v2"}
	assert.Equal(t, "team-a:payments:prod:v2", id.String())
	assert.Equal(t, "route:team-a:payments:prod:v2", id.CacheKey())
}

func TestRouteIDValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      RouteID
		wantErr bool
	}{
		{"valid", RouteID{"team-a", "payments", "prod", "v2"}, false},
		{"missing tenant", RouteID{"", "payments", "prod", "v2"}, true},
		{"missing service", RouteID{"team-a", "", "prod", "v2"}, true},
		{"missing env", RouteID{"team-a", "payments", "", "v2"}, true},
		{"missing version", RouteID{"team-a", "payments", "prod", ""}, true},
		{"whitespace only", RouteID{"  ", "payments", "prod", "v2"}, true},
		{"separator in component", RouteID{"team:a", "payments", "prod", "v2"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRouteID)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}
