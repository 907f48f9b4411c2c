package reader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/tabix"
)

// queryTabix performs a block-gzip random-access range query against the
// ".tbi"-indexed companion of filePath, returning every non-meta raw line
// in the index chunks that overlap [begin, end). Lines are not filtered by
// position, so a chunk's rows outside the range are returned as well;
// callers match the position themselves. The index is opened fresh per call;
// callers that issue many point lookups against the same study should
// prefer batching at a higher level since each call reopens the bgzf
// stream and its index.
func queryTabix(filePath string, chrom string, begin, end int) ([]string, error) {
	idxFile, err := os.Open(filePath + ".tbi")
	if err != nil {
		return nil, fmt.Errorf("open tabix index for %s: %w", filePath, err)
	}
	defer idxFile.Close()

	index, err := tabix.ReadFrom(bufio.NewReader(idxFile))
	if err != nil {
		return nil, fmt.Errorf("read tabix index for %s: %w", filePath, err)
	}

	if _, ok := index.IDs()[chrom]; !ok {
		return nil, nil
	}

	chunks, err := index.Chunks(chrom, begin, end)
	if err != nil {
		return nil, fmt.Errorf("tabix chunks for %s:%d-%d: %w", chrom, begin, end, err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	bgzfFile, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer bgzfFile.Close()

	bgzfReader, err := bgzf.NewReader(bgzfFile, 0)
	if err != nil {
		return nil, err
	}
	defer bgzfReader.Close()

	var lines []string
	for _, chunk := range chunks {
		if err := bgzfReader.Seek(chunk.Begin); err != nil {
			continue
		}
		scanner := bufio.NewScanner(bgzfReader)
		for scanner.Scan() {
			if bgzfReader.LastChunk().Begin.File >= chunk.End.File &&
				bgzfReader.LastChunk().Begin.Block >= chunk.End.Block {
				break
			}
			line := scanner.Text()
			if strings.HasPrefix(line, string(index.MetaChar)) {
				continue
			}
			lines = append(lines, line)
		}
	}

	return lines, nil
}
