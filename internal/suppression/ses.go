package suppression

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

// SESSource reads the SES account-level suppression list
type SESSource struct {
	client sesv2.ListSuppressedDestinationsAPIClient
}

// NewSESSource creates a source
func NewSESSource(client sesv2.ListSuppressedDestinationsAPIClient) *SESSource {
	return &SESSource{client: client}
}

// Name returns the source name
func (s *SESSource) Name() string {
	return "ses"
}

// Fetch follows NextToken through every page
func (s *SESSource) Fetch(ctx context.Context) ([]string, error) {
	p := sesv2.NewListSuppressedDestinationsPaginator(s.client, &sesv2.ListSuppressedDestinationsInput{
		PageSize: aws.Int32(1000),
	})

	var out []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list suppressed destinations: %w", err)
		}
		for _, d := range page.SuppressedDestinationSummaries {
			out = append(out, aws.ToString(d.EmailAddress))
		}
	}
	return out, nil
}
