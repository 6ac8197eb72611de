package loader

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/vm"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// FormatTag identifies the executable manifest format.
const FormatTag = "kexe/1"

// Segment sizes used when a manifest leaves them out.
const (
	DefaultTextPages  = 1
	DefaultStackPages = 4
)

// Manifest describes an executable: the routine implementing it and the
// layout of its address space.
type Manifest struct {
	Format   string `yaml:"format" toml:"format" json:"format"`
	Entry    string `yaml:"entry" toml:"entry" json:"entry"`
	Text     int    `yaml:"text" toml:"text" json:"text"`
	Data     int    `yaml:"data" toml:"data" json:"data"`
	Heap     int    `yaml:"heap" toml:"heap" json:"heap"`
	Stack    int    `yaml:"stack" toml:"stack" json:"stack"`
	InitData string `yaml:"init_data,omitempty" toml:"init_data,omitempty" json:"init_data,omitempty"`
}

// Decode parses and validates the manifest carried by img. Every failure is
// an exec format error.
func Decode(img *Image) (*Manifest, error) {
	data := img.Data
	if img.Compressed {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("loader: zstd: %v: %w", err, abi.ENOEXEC)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(img.Data, nil)
		if err != nil {
			return nil, fmt.Errorf("loader: %s: decompress: %v: %w", img.Path, err, abi.ENOEXEC)
		}
	}

	var m Manifest
	var err error
	switch img.Format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &m)
	case FormatTOML:
		err = toml.Unmarshal(data, &m)
	case FormatJSON:
		err = sonic.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("loader: %s: unknown manifest format %q: %w", img.Path, img.Format, abi.ENOEXEC)
	}
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %v: %w", img.Path, err, abi.ENOEXEC)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("loader: %s: %v: %w", img.Path, err, abi.ENOEXEC)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Format != FormatTag {
		return fmt.Errorf("format tag %q, want %q", m.Format, FormatTag)
	}
	if m.Entry == "" {
		return fmt.Errorf("no entry symbol")
	}
	if m.Text < 0 || m.Data < 0 || m.Heap < 0 || m.Stack < 0 {
		return fmt.Errorf("negative segment size")
	}
	if m.Text == 0 {
		m.Text = DefaultTextPages
	}
	if m.Stack == 0 {
		m.Stack = DefaultStackPages
	}
	if total := m.Text + m.Data + m.Heap + m.Stack; total > (vm.UserStack-vm.TextBase)/vm.PageSize {
		return fmt.Errorf("%d pages do not fit in user space", total)
	}
	if len(m.InitData) > m.Data*vm.PageSize {
		return fmt.Errorf("init_data is %d bytes, data segment holds %d", len(m.InitData), m.Data*vm.PageSize)
	}
	return nil
}

// Encode renders m in the given format, compressing with zstd when asked.
func Encode(m *Manifest, format Format, compress bool) ([]byte, error) {
	var data []byte
	var err error
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(m)
	case FormatTOML:
		data, err = toml.Marshal(m)
	case FormatJSON:
		data, err = sonic.MarshalIndent(m, "", "  ")
	default:
		return nil, fmt.Errorf("loader: unknown manifest format %q", format)
	}
	if err != nil || !compress {
		return data, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}
