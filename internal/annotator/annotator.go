// Package annotator wraps the SnpEff variant-effect predictor: one-time
// binary fetch, VCF generation from variant synonyms, subprocess
// invocation, and ANN= field parsing into gene nodes and edges. Grounded
// on the historical SequenceVariantAnnotator
// (original_source/rags_app/rags_src/rags_variant_annotation.py), using
// os/exec for the external SnpEff invocation.
package annotator

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ObesityHub/robokop-rags/internal/errors"
	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/google/uuid"
)

// Config controls where the tool lives and how it is invoked. ReferenceGenome
// and the download URL are configurable, unlike the historical
// implementation's hardcoded "GRCh38.99" and blob URL.
type Config struct {
	DownloadURL     string
	WorkspaceDir    string
	ReferenceGenome string
	UpDownDistance  int
	JavaBinary      string
}

// GeneAnnotation is one effect-predicate -> gene-id edge discovered for a
// variant, with the optional distance-to-feature property SnpEff reports
// for intergenic effects. VariantNodeID is carried through from the VCF's
// ID column (which createVCF stamps with the variant's graph node id), so
// a single AnnotateVariants batch spanning many variants can still be
// regrouped by subject afterward.
type GeneAnnotation struct {
	VariantNodeID      string
	Predicate          string
	GeneID             string
	DistanceToFeature  *int
}

// AnnotationResult is one AnnotateVariants run's output: the discovered
// gene annotations plus the tool provenance recorded on the run.
type AnnotationResult struct {
	Annotations []GeneAnnotation
	ToolVersion string
	ToolCmd     string
}

// Annotator runs SnpEff against a batch of variant nodes.
type Annotator struct {
	cfg Config

	toolVersion string
}

func New(cfg Config) *Annotator {
	return &Annotator{cfg: cfg}
}

func (a *Annotator) toolDir() string {
	return filepath.Join(a.cfg.WorkspaceDir, "snpEff")
}

// Ensure downloads and unpacks the tool into WorkspaceDir if it is not
// already present. Safe to call before every annotation run.
func (a *Annotator) Ensure(ctx context.Context) error {
	if _, err := os.Stat(a.toolDir()); err == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.DownloadURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.NewAnnotationFailedError("failed to download variant annotation tool", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.NewAnnotationFailedError("failed to download variant annotation tool", fmt.Sprintf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewAnnotationFailedError("failed to read downloaded archive", err.Error())
	}

	if err := os.MkdirAll(a.cfg.WorkspaceDir, 0o755); err != nil {
		return err
	}
	return unzipTo(body, a.cfg.WorkspaceDir)
}

func unzipTo(archive []byte, dest string) error {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return errors.NewAnnotationFailedError("failed to unpack variant annotation tool", err.Error())
	}
	for _, f := range zr.File {
		path := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

// AnnotateVariants annotates a batch of sequence-variant nodes. It emits a
// temporary VCF, runs SnpEff, parses the ANN= output, and always removes
// its temp files, even when the subprocess fails.
func (a *Annotator) AnnotateVariants(ctx context.Context, nodes []*models.GraphNode) (*AnnotationResult, error) {
	if err := a.Ensure(ctx); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	vcfPath := filepath.Join(a.cfg.WorkspaceDir, fmt.Sprintf("temp_%s.vcf", runID))
	outPath := filepath.Join(a.cfg.WorkspaceDir, fmt.Sprintf("temp_%s.ann.vcf", runID))
	defer os.Remove(vcfPath)
	defer os.Remove(outPath)

	if err := createVCF(vcfPath, nodes); err != nil {
		return nil, err
	}

	toolCmd, err := a.runSnpEff(ctx, vcfPath, outPath)
	if err != nil {
		return nil, err
	}

	annotations, err := extractAnnotations(outPath)
	if err != nil {
		return nil, err
	}
	return &AnnotationResult{
		Annotations: annotations,
		ToolVersion: a.version(ctx),
		ToolCmd:     toolCmd,
	}, nil
}

func (a *Annotator) javaBinary() string {
	if a.cfg.JavaBinary != "" {
		return a.cfg.JavaBinary
	}
	return "java"
}

func (a *Annotator) runSnpEff(ctx context.Context, vcfPath, outPath string) (string, error) {
	outFile, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer outFile.Close()

	args := []string{
		"-Xmx12g", "-jar", "snpEff.jar",
		"-noStats",
		"-ud", strconv.Itoa(a.cfg.UpDownDistance),
		a.cfg.ReferenceGenome,
		vcfPath,
	}

	cmd := exec.CommandContext(ctx, a.javaBinary(), args...)
	cmd.Dir = a.toolDir()
	cmd.Stdout = outFile
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return cmd.String(), errors.NewAnnotationFailedError("snpEff run failed", stderr.String())
	}
	return cmd.String(), nil
}

// version queries SnpEff once per Annotator lifetime; a failed query is
// recorded as an empty version, never an annotation failure.
func (a *Annotator) version(ctx context.Context) string {
	if a.toolVersion != "" {
		return a.toolVersion
	}
	cmd := exec.CommandContext(ctx, a.javaBinary(), "-jar", "snpEff.jar", "-version")
	cmd.Dir = a.toolDir()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return ""
	}
	a.toolVersion = strings.TrimSpace(string(out))
	return a.toolVersion
}

// createVCF writes one record per node, sourced from its first
// ROBO_VAR-prefixed synonym. Per-node empty-allele padding matches the
// historical rule exactly: an empty ref becomes "N"/alt "N"+alt, an empty
// alt becomes "N"+ref/"N", and when neither is empty the position is
// advanced by one.
func createVCF(path string, nodes []*models.GraphNode) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, node := range nodes {
		for _, syn := range node.Synonyms {
			if !strings.HasPrefix(syn, "ROBO_VAR:") {
				continue
			}
			key := strings.SplitN(syn, ":", 2)[1]
			params := strings.Split(key, "|")
			if len(params) < 6 {
				continue
			}
			chrom := params[1]
			pos, err := strconv.Atoi(params[2])
			if err != nil {
				continue
			}
			ref := params[4]
			alt := params[5]

			switch {
			case ref == "":
				ref = "N"
				alt = "N" + alt
			case alt == "":
				ref = "N" + ref
				alt = "N"
			default:
				pos++
			}

			fmt.Fprintf(f, "%s\t%d\t%s\t%s\t%s\t.\t.\t.\n", chrom, pos, node.ID, ref, alt)
			break
		}
	}
	return nil
}
