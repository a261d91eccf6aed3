package intake

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectAndArray(t *testing.T) {
	records, err := Parse([]byte(`{"url":"https://a.com","business_info":{"email":"a@a.com"}}`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].Index)

	records, err = Parse([]byte(`[{"business_info":{"email":"a@a.com"}}, {"business_info":{"email":"b@b.com"}}]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[1].Index)
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{``, `{"broken":`, `"just a string"`, `42`} {
		_, err := Parse([]byte(input))
		assert.ErrorIs(t, err, ErrInvalidJSON, "input %q", input)
	}
}

func TestRecordDecode(t *testing.T) {
	records, err := Parse([]byte(`[
		{"url": "https://acme.com", "business_info": {"email": "Jane@Acme.com", "business name": "Acme", "first name": "Jane", "surname": "Doe"}},
		{"url": "https://none.com"},
		{"business_info": "not an object"},
		[1, 2, 3],
		{"business_info": {"email": 42}},
		{"url": 7, "business_info": null}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 6)

	c, err := records[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "https://acme.com", c.URL)
	assert.Equal(t, "Jane@Acme.com", c.Info.Email)
	assert.Equal(t, "Acme", c.Info.BusinessName)
	assert.Equal(t, "Jane", c.Info.FirstName)
	assert.Equal(t, "Doe", c.Info.Surname)
	assert.Equal(t, "https://acme.com", c.Original["url"])

	c, err = records[1].Decode()
	require.NoError(t, err)
	assert.Empty(t, c.Info.Email)

	for _, i := range []int{2, 3, 4} {
		_, err = records[i].Decode()
		assert.ErrorIs(t, err, ErrMalformedRecord, "record %d", i)
	}

	c, err = records[5].Decode()
	require.NoError(t, err)
	assert.Empty(t, c.URL)
	assert.Empty(t, c.Info.Email)
}

func TestLoadLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campaign.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"business_info":{"email":"a@a.com"}}]`), 0644))

	records, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoadS3(t *testing.T) {
	loader := &Loader{S3: &fakeS3{objects: map[string]string{
		"leads/2024/spring.json": `{"business_info":{"email":"a@a.com"}}`,
	}}}
	ctx := context.Background()

	records, err := loader.Load(ctx, "s3://leads/2024/spring.json")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = loader.Load(ctx, "s3://leads/missing.json")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = (&Loader{}).Load(ctx, "s3://leads/2024/spring.json")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFileNotFound))
}

func TestSplitS3Path(t *testing.T) {
	tests := []struct {
		path   string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://b/k.json", "b", "k.json", true},
		{"s3://b/dir/k.json", "b", "dir/k.json", true},
		{"s3://b", "", "", false},
		{"s3:///k.json", "", "", false},
		{"/tmp/k.json", "", "", false},
	}

	for _, tt := range tests {
		bucket, key, ok := splitS3Path(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.bucket, bucket, tt.path)
		assert.Equal(t, tt.key, key, tt.path)
	}
}
