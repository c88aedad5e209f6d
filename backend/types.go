package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sagasynth/sagasynth/txdriver"
)

// Generation wizard defaults.
const (
	DefaultSampleSize    = 50
	DefaultDomain        = "medical"
	DefaultVisibility    = "public-sellable"
	DefaultPriceUSDC     = 5
	DefaultMaxTokens     = 3000
	DefaultModel         = "gemini-2.0-flash"
	DefaultOutputFormat  = "Structured JSON"
	DefaultSourceDataset = "galileo-ai/medical_transcription_40"
)

// DefaultMintTags are the tags of a minted dataset when the backend sends none.
var DefaultMintTags = []string{"dataset", "synthetic", "medical"}

// Envelope is the status part of most backend responses.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (e Envelope) status() Envelope { return e }

// DatasetSample is a row of the source dataset.
type DatasetSample struct {
	ID    int    `json:"id,omitempty"`
	Text  string `json:"text"`
	Label int    `json:"label"`
}

type fetchDatasetRequest struct {
	SampleSize int `json:"sample_size"`
}

type fetchDatasetResponse struct {
	Samples []DatasetSample `json:"samples"`
}

// SyntheticOutput is the model output for one source row.
type SyntheticOutput struct {
	SyntheticTranscription string `json:"synthetic_transcription"`
	MedicalSpecialty       string `json:"medical_specialty"`
	Explanation            string `json:"explanation"`
}

// SyntheticRecord pairs a source row with its synthetic output.
type SyntheticRecord struct {
	OriginalText    string          `json:"original_text"`
	SyntheticOutput SyntheticOutput `json:"synthetic_output"`
}

type testPromptRequest struct {
	InputText string `json:"input_text"`
	Domain    string `json:"domain"`
}

type testPromptResponse struct {
	Data []SyntheticRecord `json:"data"`
}

// GenerateRequest is the input of a full dataset generation.
type GenerateRequest struct {
	SampleSize    int     `json:"sample_size"`
	Domain        string  `json:"domain"`
	DatasetName   string  `json:"dataset_name"`
	Description   string  `json:"description"`
	Visibility    string  `json:"visibility"`
	PriceUSDC     float64 `json:"price_usdc"`
	MaxTokens     int     `json:"max_tokens"`
	OutputFormat  string  `json:"output_format"`
	SourceDataset string  `json:"source_dataset"`
	AIModel       string  `json:"ai_model"`
	InputText     string  `json:"input_text"`
}

// DefaultGenerateRequest returns a request filled with the wizard defaults.
func DefaultGenerateRequest() GenerateRequest {
	return GenerateRequest{
		SampleSize:    DefaultSampleSize,
		Domain:        DefaultDomain,
		Visibility:    DefaultVisibility,
		PriceUSDC:     DefaultPriceUSDC,
		MaxTokens:     DefaultMaxTokens,
		OutputFormat:  DefaultOutputFormat,
		SourceDataset: DefaultSourceDataset,
		AIModel:       DefaultModel,
	}
}

// Validate checks the request before it is sent.
func (r GenerateRequest) Validate() error {
	if r.SampleSize <= 0 {
		return fmt.Errorf("sample size must be positive, got %d", r.SampleSize)
	}
	if strings.TrimSpace(r.DatasetName) == "" {
		return errors.New("dataset name is required")
	}
	if strings.TrimSpace(r.InputText) == "" {
		return errors.New("prompt is required")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", r.MaxTokens)
	}
	if r.PriceUSDC < 0 {
		return fmt.Errorf("price must not be negative, got %v", r.PriceUSDC)
	}

	return nil
}

// IrysLinks are the permanent storage links of a generated dataset.
type IrysLinks struct {
	ContentURL  string `json:"content_url"`
	MetadataURL string `json:"metadata_url,omitempty"`
}

// GeneratedMetadata is the metadata the backend proposes for minting. Every field is optional.
type GeneratedMetadata struct {
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	ContentHash   string   `json:"contentHash,omitempty"`
	SourceURL     string   `json:"sourceUrl,omitempty"`
	ContentLink   string   `json:"contentLink,omitempty"`
	EmbedVectorID string   `json:"embedVectorId,omitempty"`
	CreatedAt     int64    `json:"createdAt,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// GenerateResponse is the result of a dataset generation.
type GenerateResponse struct {
	Envelope
	IrysLinks IrysLinks          `json:"irys_links"`
	Metadata  *GeneratedMetadata `json:"metadata,omitempty"`
	// Data is kept raw, its hash is the default content hash of the minted dataset.
	Data json.RawMessage `json:"data"`
}

// Records decodes the generated rows.
func (r GenerateResponse) Records() ([]SyntheticRecord, error) {
	if len(r.Data) == 0 {
		return nil, nil
	}

	var records []SyntheticRecord
	if err := json.Unmarshal(r.Data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode generated records: %w", err)
	}

	return records, nil
}

// MintRequest builds the mint of the generated dataset. Fields the backend leaves empty fall
// back to the content link, the keccak256 hash of the generated data and the default tags.
func (r GenerateResponse) MintRequest() txdriver.MintRequest {
	var md GeneratedMetadata
	if r.Metadata != nil {
		md = *r.Metadata
	}

	req := txdriver.MintRequest{
		SourceURL:     md.SourceURL,
		ContentHash:   md.ContentHash,
		ContentLink:   md.ContentLink,
		EmbedVectorID: md.EmbedVectorID,
		CreatedAt:     md.CreatedAt,
		Tags:          md.Tags,
		TokenURI:      r.IrysLinks.MetadataURL,
	}

	if req.SourceURL == "" {
		req.SourceURL = r.IrysLinks.ContentURL
	}
	if req.ContentLink == "" {
		req.ContentLink = r.IrysLinks.ContentURL
	}
	if req.ContentHash == "" {
		req.ContentHash = crypto.Keccak256Hash(compact(r.Data)).Hex()
	}
	if len(req.Tags) == 0 {
		req.Tags = append([]string(nil), DefaultMintTags...)
	}

	return req
}

// NFTMetadata is a minted dataset as listed by the marketplace.
type NFTMetadata struct {
	TokenID       int64    `json:"tokenId"`
	SourceURL     string   `json:"source_url"`
	ContentHash   string   `json:"content_hash"`
	ContentLink   string   `json:"content_link"`
	EmbedVectorID string   `json:"embed_vector_id"`
	CreatedAt     int64    `json:"created_at"`
	Tags          []string `json:"tags"`
	Owner         string   `json:"owner"`
	TokenURI      string   `json:"tokenURI"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
}

type metadataResponse struct {
	Envelope
	Metadata []NFTMetadata `json:"metadata"`
}

// Bounty is a bounty as listed by the backend. Amount is in QSG.
type Bounty struct {
	ID           int64    `json:"id"`
	Amount       string   `json:"amount"`
	Distributed  bool     `json:"distributed"`
	Creator      string   `json:"creator"`
	Contributors []string `json:"contributors"`
}

// BountySummary aggregates the listed bounties.
type BountySummary struct {
	Active      int    `json:"active"`
	Distributed int    `json:"distributed"`
	TotalValue  string `json:"totalValue"`
}

// BountyList is the bounty listing.
type BountyList struct {
	Envelope
	Bounties []Bounty      `json:"bounties"`
	Summary  BountySummary `json:"summary"`
}

// CreateBountyRequest is a bounty created by the backend account.
type CreateBountyRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Amount      string   `json:"amount"`
	Tags        []string `json:"tags"`
}

// BountyResult is the outcome of a bounty write made by the backend.
type BountyResult struct {
	Envelope
	Bounty struct {
		ID               int64  `json:"id"`
		NewContributor   string `json:"newContributor,omitempty"`
		ContributorCount int    `json:"contributorCount,omitempty"`
	} `json:"bounty"`
	Transaction struct {
		Hash string `json:"hash"`
	} `json:"transaction"`
}

type addContributorRequest struct {
	ContributorAddress string `json:"contributorAddress"`
}

// compact strips insignificant whitespace so the hash does not depend on the server's encoder.
func compact(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}

	return buf.Bytes()
}
