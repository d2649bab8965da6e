// Package templates loads task template definitions from TOML and YAML
// files for import into a workspace.
package templates

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"claudia/internal/errs"
	"claudia/internal/types"
)

// definition is the on-disk shape of one template. A file holds exactly
// one template; importing several means several files.
type definition struct {
	Name            string       `toml:"name" yaml:"name"`
	Description     string       `toml:"description" yaml:"description"`
	DefaultPriority *int         `toml:"default_priority" yaml:"default_priority"`
	DefaultLabels   []string     `toml:"default_labels" yaml:"default_labels"`
	Subtasks        []subtaskDef `toml:"subtasks" yaml:"subtasks"`
}

type subtaskDef struct {
	Title       string `toml:"title" yaml:"title"`
	Description string `toml:"description" yaml:"description"`
}

// Load reads a template definition file. The format follows the
// extension: .toml, .yaml or .yml.
func Load(path string) (*types.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFoundf("template file %s not found", path)
		}
		return nil, errs.Wrap(errs.KindInternal, "read template file", err)
	}

	var def definition
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &def); err != nil {
			return nil, errs.Wrap(errs.KindInvalidArgument, "parse "+filepath.Base(path), err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, errs.Wrap(errs.KindInvalidArgument, "parse "+filepath.Base(path), err)
		}
	default:
		return nil, errs.InvalidArgumentf("unsupported template format %q (want .toml, .yaml or .yml)", ext)
	}

	priority := types.DefaultPriority
	if def.DefaultPriority != nil {
		priority = *def.DefaultPriority
	}
	tpl := &types.Template{
		Name:            def.Name,
		Description:     def.Description,
		DefaultPriority: priority,
		DefaultLabels:   def.DefaultLabels,
	}
	for _, sub := range def.Subtasks {
		tpl.Subtasks = append(tpl.Subtasks, types.TemplateSubtask{
			Title:       sub.Title,
			Description: sub.Description,
		})
	}
	if err := tpl.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, "invalid template in "+filepath.Base(path), err)
	}
	return tpl, nil
}
