package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/smithy-go"

	"github.com/checkyourself/checkyourself/internal/config"
	"github.com/checkyourself/checkyourself/pkg/types"
)

// IAMAPI is the subset of *iam.Client used by CloudSource.
type IAMAPI interface {
	iam.ListServerCertificatesAPIClient
	GetServerCertificate(ctx context.Context, params *iam.GetServerCertificateInput, optFns ...func(*iam.Options)) (*iam.GetServerCertificateOutput, error)
}

// authErrorCodes are the AWS error codes that mean the credentials, not the
// network, are at fault.
var authErrorCodes = map[string]bool{
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
	"ExpiredToken":                true,
	"AuthFailure":                 true,
}

// CloudSource reads the IAM server certificates of one AWS account.
type CloudSource struct {
	account  string
	client   IAMAPI
	maxItems int32
	timeout  time.Duration
	now      Clock
}

// NewCloud builds a CloudSource for acct using static credentials in the
// configured default region. Shared AWS config files and AWS_PROFILE are
// not consulted. SDK retries are disabled; the next scheduled run is the retry.
func NewCloud(cfg *config.Config, acct config.AWSAccount) *CloudSource {
	id, secret := acct.Credentials()
	client := iam.New(iam.Options{
		Region:           cfg.AWSDefaultRegion,
		Credentials:      aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(id, secret, "")),
		RetryMaxAttempts: 1,
	})
	return NewCloudWithClient(acct.Name, client, cfg.AWSMaxItems, cfg.Timeout.Std())
}

// NewCloudWithClient builds a CloudSource around an existing IAM client.
func NewCloudWithClient(account string, client IAMAPI, maxItems int32, timeout time.Duration) *CloudSource {
	return &CloudSource{
		account:  account,
		client:   client,
		maxItems: maxItems,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Name returns the account display name.
func (s *CloudSource) Name() string { return "aws:" + s.account }

// FetchAll lists every server certificate in the account and parses each one.
//
// A failed listing fails the whole account with ErrAuthorization or
// ErrSourceUnavailable. A certificate that cannot be fetched or parsed is
// skipped; the remaining certificates are still returned and the skip
// reasons are joined into the returned error.
func (s *CloudSource) FetchAll(ctx context.Context) ([]types.CertificateRecord, error) {
	now := s.now()

	names, err := s.listNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("aws account %q: list server certificates: %w", s.account, err)
	}

	var (
		records []types.CertificateRecord
		errs    []error
	)
	for _, name := range names {
		rec, err := s.fetch(ctx, name, now)
		if err != nil {
			slog.Warn("source: skipping aws certificate",
				"account", s.account, "iam_name", name, "err", err)
			errs = append(errs, fmt.Errorf("aws account %q: certificate %q: %w", s.account, name, err))
			continue
		}
		records = append(records, rec)
	}

	slog.Debug("source: aws account fetched",
		"account", s.account, "listed", len(names), "records", len(records))

	return records, errors.Join(errs...)
}

// listNames follows every page of ListServerCertificates, using maxItems as
// the page size.
func (s *CloudSource) listNames(ctx context.Context) ([]string, error) {
	p := iam.NewListServerCertificatesPaginator(s.client, &iam.ListServerCertificatesInput{
		MaxItems: aws.Int32(s.maxItems),
	})

	var names []string
	for p.HasMorePages() {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		page, err := p.NextPage(callCtx)
		cancel()
		if err != nil {
			return nil, classifyAWSError(err)
		}
		for _, md := range page.ServerCertificateMetadataList {
			names = append(names, aws.ToString(md.ServerCertificateName))
		}
	}
	return names, nil
}

func (s *CloudSource) fetch(ctx context.Context, name string, now time.Time) (types.CertificateRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetServerCertificate(callCtx, &iam.GetServerCertificateInput{
		ServerCertificateName: aws.String(name),
	})
	if err != nil {
		return types.CertificateRecord{}, classifyAWSError(err)
	}
	if out.ServerCertificate == nil || out.ServerCertificate.CertificateBody == nil {
		return types.CertificateRecord{}, fmt.Errorf("%w: empty certificate body", ErrParse)
	}

	cert, err := ParseCertificate([]byte(aws.ToString(out.ServerCertificate.CertificateBody)))
	if err != nil {
		return types.CertificateRecord{}, err
	}

	return types.CertificateRecord{
		CommonName:    CommonName(cert),
		DaysRemaining: DaysRemaining(cert.NotAfter, now),
		Source:        types.CloudManaged,
		ExtraInfo: []types.Field{
			{Label: "iam_name", Value: name},
			{Label: "account_name", Value: s.account},
		},
		NotAfter: cert.NotAfter,
	}, nil
}

// classifyAWSError wraps err with ErrAuthorization when AWS rejected the
// credentials and ErrSourceUnavailable otherwise.
func classifyAWSError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%w: %w", ErrAuthorization, err)
	}
	return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
}
