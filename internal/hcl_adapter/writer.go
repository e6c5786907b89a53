package hcl_adapter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/shplanner/internal/catalog"
	"github.com/zclconf/go-cty/cty"
)

// RegisteredReplicasFile receives registrations when the replica catalog is
// a directory.
const RegisteredReplicasFile = "registered.hcl"

// AppendReplicas appends one replica block per record to the catalog at
// path. A directory gets its records in RegisteredReplicasFile. The blocks
// are written with a single append so concurrent jobs do not interleave.
func AppendReplicas(path string, records []catalog.Replica) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, RegisteredReplicasFile)
	}
	if len(records) == 0 {
		return path, nil
	}

	f := hclwrite.NewEmptyFile()
	body := f.Body()
	for _, r := range records {
		body.AppendNewline()
		block := body.AppendNewBlock("replica", []string{r.LFN}).Body()
		block.SetAttributeValue("pfn", cty.StringVal(r.PFN))
		block.SetAttributeValue("site", cty.StringVal(orDefault(r.Site, DefaultSite)))
	}

	out, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return path, fmt.Errorf("opening replica catalog %s: %w", path, err)
	}
	if _, err := out.Write(f.Bytes()); err != nil {
		_ = out.Close()
		return path, fmt.Errorf("appending to replica catalog %s: %w", path, err)
	}
	return path, out.Close()
}
