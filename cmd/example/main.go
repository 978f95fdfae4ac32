package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aligator/flatfat"
	"github.com/spf13/afero"
)

// main is just a example main to play with flatfat.
// It formats a volume in memory, fills it through the afero interface and reads it back.
func main() {
	mem := afero.NewMemMapFs()

	volume, err := flatfat.Create(mem, "example.img", 10*flatfat.MiB, 8*flatfat.KiB)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer volume.Close()

	g := volume.Geometry()
	fmt.Printf("Created volume with %v clusters of %v bytes\n\n", g.Clusters, g.ClusterSize)

	fat := flatfat.NewFs(volume)
	if err := afero.WriteFile(fat, "README.md", []byte(strings.Repeat("flatfat example\n", 1000)), 0644); err != nil {
		fmt.Println("could not write the file", err)
		os.Exit(1)
	}
	if _, err := volume.CreateFile("empty.txt"); err != nil {
		fmt.Println("could not create the file", err)
		os.Exit(1)
	}

	afero.Walk(fat, "", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fmt.Println(err)
			return err
		}
		fmt.Println(path, info.IsDir(), info.Size(), info.ModTime())
		return nil
	})

	file, err := fat.Open("README.md")
	if err != nil {
		fmt.Println("could not open the root file", err)
		os.Exit(1)
	}

	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		fmt.Println("could not stat the file", err)
		os.Exit(1)
	}

	buffer := make([]byte, 16)
	offset, err := file.Seek(16*199, io.SeekStart)
	if err != nil {
		fmt.Println("could not seek", err)
		os.Exit(1)
	}

	n, err := file.Read(buffer)
	if err != nil {
		fmt.Println("could not read the file", err)
		os.Exit(1)
	}
	fmt.Printf("\n%v bytes of %v at offset %v: %q\n", n, stat.Name(), offset, string(buffer[:n]))

	u := volume.Usage()
	fmt.Printf("\n%v of %v clusters used (%v%%)\n", u.Used, u.Total, u.UsedPercent())
}
