package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// ValidateSPIRV checks the word alignment and magic number of a module.
func ValidateSPIRV(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return fmt.Errorf("SPIR-V module of %d bytes is not a whole number of words", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return fmt.Errorf("bad SPIR-V magic 0x%08x", magic)
	}
	return nil
}

// LoadShaders reads the two compiled programs. A missing .spv is compiled
// from the GLSL source beside it (same path without ".spv") when glslc or
// glslangValidator is installed.
func LoadShaders(vertPath, fragPath string, log logrus.FieldLogger) (interop.ShaderSet, error) {
	vert, err := loadModule(vertPath, log)
	if err != nil {
		return interop.ShaderSet{}, fmt.Errorf("vertex program: %w", err)
	}
	frag, err := loadModule(fragPath, log)
	if err != nil {
		return interop.ShaderSet{}, fmt.Errorf("fragment program: %w", err)
	}
	return interop.ShaderSet{Vertex: vert, Fragment: frag, EntryPoint: "main"}, nil
}

func loadModule(path string, log logrus.FieldLogger) ([]byte, error) {
	code, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && strings.HasSuffix(path, ".spv") {
		src := strings.TrimSuffix(path, ".spv")
		if _, serr := os.Stat(src); serr == nil {
			log.WithFields(logrus.Fields{"source": src, "output": path}).Info("compiling GLSL to SPIR-V")
			code, err = CompileShaderGLSL(src, path)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := ValidateSPIRV(code); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, nil
}

// CompileShaderGLSL compiles a GLSL file to SPIR-V using glslc or
// glslangValidator and returns the module. The stage comes from the source
// extension (.vert, .frag).
func CompileShaderGLSL(sourcePath, outputPath string) ([]byte, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, err
	}

	var cmd *exec.Cmd
	if _, err := exec.LookPath("glslc"); err == nil {
		cmd = exec.Command("glslc", sourcePath, "-o", outputPath, "-O")
	} else if _, err := exec.LookPath("glslangValidator"); err == nil {
		cmd = exec.Command("glslangValidator", "-V", sourcePath, "-o", outputPath)
	} else {
		return nil, fmt.Errorf("no shader compiler found (glslc or glslangValidator)")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("shader compilation failed: %v\n%s", err, output)
	}
	return os.ReadFile(outputPath)
}
