package redisstore_test

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/tenderd/tenderd/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, testutil.GoleakOptions...)
}
