package algorithm

import (
	"testing"

	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type RegistryTestSuite struct {
	suite.Suite
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) TestBuiltinsRegistered() {
	r := NewRegistry()

	for _, id := range []types.AlgorithmID{
		types.AlgorithmTimeWeightedAverage,
		types.AlgorithmVolumeWeightedAverage,
		types.AlgorithmLastPrice,
		types.AlgorithmMomentum,
		types.AlgorithmPriceRange,
		types.AlgorithmRealizedVolatility,
		types.AlgorithmDrawdown,
		types.AlgorithmTrailingStop,
		types.AlgorithmFixedTakeProfit,
		types.AlgorithmWindowElapsed,
	} {
		algo, err := r.Get(id)
		assert.NoError(s.T(), err)
		assert.Equal(s.T(), id, algo.Name())
	}

	assert.Len(s.T(), r.List(), 10)
}

func (s *RegistryTestSuite) TestUnknownAlgorithm() {
	r := NewRegistry()

	_, err := r.Get("no_such_algorithm")
	assert.Error(s.T(), err)
	assert.True(s.T(), errors.HasCode(err, errors.ErrCodeUnknownAlgorithm))
}

func (s *RegistryTestSuite) TestDuplicateRegistration() {
	r := NewEmptyRegistry()

	assert.NoError(s.T(), r.Register(NewLastPrice()))
	assert.Error(s.T(), r.Register(NewLastPrice()))
}
