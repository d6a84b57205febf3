package container

import (
	"context"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/fluxa/config"
)

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	logger, _ := logtest.NewNullLogger()

	c, err := Build(context.Background(), &config.Config{Env: "production", AccessTokenTTL: time.Hour}, logger)
	assert.Nil(t, c)
	assert.EqualError(t, err, "SECRET_KEY is required outside development")

	c, err = Build(context.Background(), &config.Config{Env: "production", SecretKey: "s"}, logger)
	assert.Nil(t, c)
	assert.Error(t, err)
}

func TestClose_ReverseOrder(t *testing.T) {
	var order []int
	c := &Container{}
	for i := 1; i <= 3; i++ {
		c.onClose(func() { order = append(order, i) })
	}

	c.Close()
	require.Equal(t, []int{3, 2, 1}, order)

	c.Close()
	assert.Len(t, order, 3)
}
