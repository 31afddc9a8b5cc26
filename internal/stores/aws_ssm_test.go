package stores

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/confseal/pkg/secretstore"
)

// mockSSMClient serves parameters from an in-memory map.
type mockSSMClient struct {
	parameters map[string]string
}

func (m *mockSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	value, ok := m.parameters[aws.ToString(params.Name)]
	if !ok {
		return nil, errors.New("ParameterNotFound: parameter does not exist")
	}
	return &ssm.GetParameterOutput{
		Parameter: &types.Parameter{
			Name:  params.Name,
			Value: aws.String(value),
		},
	}, nil
}

func (m *mockSSMClient) DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	out := &ssm.DescribeParametersOutput{}
	for _, filter := range params.ParameterFilters {
		for _, name := range filter.Values {
			if _, ok := m.parameters[name]; ok {
				out.Parameters = append(out.Parameters, types.ParameterMetadata{
					Name: aws.String(name),
				})
			}
		}
	}
	return out, nil
}

func newTestSSMManager(t *testing.T, client SSMClientAPI, config map[string]interface{}) *SSMManager {
	t.Helper()

	manager, err := NewSSMManager("aws.ssm", config, WithSSMClient(client))
	require.NoError(t, err)
	return manager
}

func TestSSMManagerRead(t *testing.T) {
	t.Parallel()

	client := &mockSSMClient{parameters: map[string]string{"DB_PASSWORD": "hunter2"}}
	manager := newTestSSMManager(t, client, map[string]interface{}{})

	got, err := manager.Read(context.Background(), "DB_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestSSMManagerReadMissing(t *testing.T) {
	t.Parallel()

	manager := newTestSSMManager(t, &mockSSMClient{parameters: map[string]string{}}, nil)

	_, err := manager.Read(context.Background(), "ABSENT")
	var notFound secretstore.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ABSENT", notFound.Key)
}

func TestSSMManagerExists(t *testing.T) {
	t.Parallel()

	client := &mockSSMClient{parameters: map[string]string{"API_KEY": "k"}}
	manager := newTestSSMManager(t, client, nil)

	exists, err := manager.Exists(context.Background(), "API_KEY")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = manager.Exists(context.Background(), "ABSENT")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSSMManagerParameterPrefix(t *testing.T) {
	t.Parallel()

	client := &mockSSMClient{parameters: map[string]string{"/prod/app/TOKEN": "t"}}
	manager := newTestSSMManager(t, client, map[string]interface{}{
		"parameter_prefix": "/prod/app/",
	})

	got, err := manager.Read(context.Background(), "TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "t", got)

	exists, err := manager.Exists(context.Background(), "TOKEN")
	require.NoError(t, err)
	assert.True(t, exists)
}
