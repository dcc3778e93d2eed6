package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/todomd/todomd/internal/schema"
)

// projectsFile is the TOML layout of the declared projects file:
//
//	[[project]]
//	name = "Data Tables"
//	tag = "#DataTables"
//	color = "#4f46e5"
type projectsFile struct {
	Project []declaredProject `toml:"project"`
}

type declaredProject struct {
	Name  string `toml:"name"`
	Tag   string `toml:"tag"`
	Color string `toml:"color"`
}

// LoadProjects reads declared projects from path. A missing file yields no
// projects. A project without a tag takes one from its name.
func LoadProjects(path string) ([]schema.Project, error) {
	if path == "" {
		return nil, nil
	}
	var f projectsFile
	md, err := toml.DecodeFile(path, &f)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read projects %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}

	var projects []schema.Project
	for i, d := range f.Project {
		tag := d.Tag
		if tag == "" {
			tag = strings.Join(strings.Fields(d.Name), "")
		}
		if tag == "" {
			return nil, fmt.Errorf("project %d in %s has neither tag nor name", i+1, path)
		}
		p := schema.ProjectFromTag(tag)
		if d.Name != "" {
			p.Name = d.Name
		}
		p.Color = d.Color
		projects = append(projects, p)
	}
	return schema.MergeProjects(nil, projects...), nil
}
