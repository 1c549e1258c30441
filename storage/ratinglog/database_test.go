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

package ratinglog

import (
	"context"
	"os"
	"testing"

	"github.com/gorse-io/explorer/dataset"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// env returns the value of an environment variable. Tests against external
// services are skipped when it is not set.
func env(t *testing.T, key string) string {
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s is not set", key)
	}
	return value
}

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) SetupTest() {
	suite.NoError(suite.Database.Purge(context.Background()))
}

func (suite *baseTestSuite) TestEmpty() {
	ratings, err := suite.Database.Load(context.Background())
	suite.NoError(err)
	suite.Empty(ratings)
	suite.NoError(suite.Database.Append(context.Background(), nil))
}

func (suite *baseTestSuite) TestAppendLoad() {
	ctx := context.Background()
	suite.NoError(suite.Database.Append(ctx, []dataset.Rating{
		{UserId: 1, ItemId: 10, Score: 4},
		{UserId: 2, ItemId: 11, Score: 3.5},
	}))
	suite.NoError(suite.Database.Append(ctx, []dataset.Rating{
		{UserId: 1, ItemId: 10, Score: 2},
	}))
	ratings, err := suite.Database.Load(ctx)
	suite.NoError(err)
	suite.Equal([]dataset.Rating{
		{UserId: 1, ItemId: 10, Score: 4},
		{UserId: 2, ItemId: 11, Score: 3.5},
		{UserId: 1, ItemId: 10, Score: 2},
	}, ratings)
}

func (suite *baseTestSuite) TestInitTwice() {
	ctx := context.Background()
	suite.NoError(suite.Database.Append(ctx, []dataset.Rating{{UserId: 1, ItemId: 2, Score: 5}}))
	suite.NoError(suite.Database.Init())
	ratings, err := suite.Database.Load(ctx)
	suite.NoError(err)
	suite.Equal([]dataset.Rating{{UserId: 1, ItemId: 2, Score: 5}}, ratings)
}

func (suite *baseTestSuite) TestPurge() {
	ctx := context.Background()
	suite.NoError(suite.Database.Append(ctx, []dataset.Rating{{UserId: 1, ItemId: 2, Score: 5}}))
	suite.NoError(suite.Database.Purge(ctx))
	ratings, err := suite.Database.Load(ctx)
	suite.NoError(err)
	suite.Empty(ratings)
}

func TestOpenNotSupported(t *testing.T) {
	_, err := Open("bolt://ratings.db", "")
	assert.True(t, errors.Is(err, errors.NotSupported))
}
