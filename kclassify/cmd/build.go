// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/kclassify/kclassify/kclassify/util"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a database of singleton k-mers from reference sequences",
	Long: `Build a database of singleton k-mers from reference sequences

K-mers (canonical) of each reference file are collected, and those occurring
in exactly one file are saved as the singleton k-mers of that reference.

Input:
  1. Input plain or gzipped FASTA/Q files can be given via positional
     arguments or the flag -X/--infile-list with the list of input files,
  2. Or a directory containing sequence files via the flag -I/--in-dir,
     with multiple-level sub-directories allowed. A regular expression
     for matching sequencing files is available via the flag -r/--file-regexp.
  3. Sequences of each reference should be saved in a separate file.

  Attention:
    The reference label is the basename of file with common FASTA/Q file
  extension removed, captured via the flag -N/--ref-name-regexp.
  Labels are better to be distinct.

Output:
  A single binary file. Nothing is written if any input file fails.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		// ---------------------------------------------------------------
		// basic flags

		k := getFlagPositiveInt(cmd, "kmer")
		if k > 32 {
			checkError(fmt.Errorf("the value of flag -k/--kmer should be in range of [1, 32]"))
		}

		outFile := getFlagString(cmd, "out-file")
		force := getFlagBool(cmd, "force")
		noCompress := getFlagBool(cmd, "no-compress")
		skipFileCheck := getFlagBool(cmd, "skip-file-check")

		if outFile == "" {
			checkError(fmt.Errorf("flag -o/--out-file is needed"))
		}

		var err error

		existed, err := pathutil.Exists(outFile)
		checkError(errors.Wrap(err, outFile))
		if existed && !force {
			checkError(fmt.Errorf("output file existed: %s, use --force to overwrite", outFile))
		}

		inDir := getFlagString(cmd, "in-dir")
		readFromDir := inDir != ""
		if readFromDir {
			var isDir bool
			isDir, err = pathutil.IsDir(inDir)
			if err != nil {
				checkError(errors.Wrapf(err, "checking -I/--in-dir"))
			}
			if !isDir {
				checkError(fmt.Errorf("value of -I/--in-dir should be a directory: %s", inDir))
			}
		}

		reFileStr := getFlagString(cmd, "file-regexp")
		var reFile *regexp.Regexp
		if reFileStr != "" {
			if !reIgnoreCase.MatchString(reFileStr) {
				reFileStr = reIgnoreCaseStr + reFileStr
			}
			reFile, err = regexp.Compile(reFileStr)
			checkError(errors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr))
		}

		reRefNameStr := getFlagString(cmd, "ref-name-regexp")
		var reRefName *regexp.Regexp
		if reRefNameStr != "" {
			if !regexp.MustCompile(`\(.+\)`).MatchString(reRefNameStr) {
				checkError(fmt.Errorf(`value of --ref-name-regexp must contains "(" and ")" to capture the ref name from file name`))
			}
			if !reIgnoreCase.MatchString(reRefNameStr) {
				reRefNameStr = reIgnoreCaseStr + reRefNameStr
			}

			reRefName, err = regexp.Compile(reRefNameStr)
			if err != nil {
				checkError(errors.Wrapf(err, "failed to parse regular expression for extracting reference name: %s", reRefNameStr))
			}
		}

		reSeqNameStrs := getFlagStringSlice(cmd, "seq-name-filter")
		reSeqNames := make([]*regexp.Regexp, 0, len(reSeqNameStrs))
		for _, kw := range reSeqNameStrs {
			if !reIgnoreCase.MatchString(kw) {
				kw = reIgnoreCaseStr + kw
			}
			re, err := regexp.Compile(kw)
			if err != nil {
				checkError(errors.Wrapf(err, "failed to parse regular expression for matching sequence header: %s", kw))
			}
			reSeqNames = append(reSeqNames, re)
		}

		bopt := &BuildOptions{
			NumCPUs: opt.NumCPUs,
			Verbose: opt.Verbose,

			K: k,

			ReRefName:    reRefName,
			ReSeqExclude: reSeqNames,
		}
		checkError(CheckBuildOptions(bopt))

		// ---------------------------------------------------------------
		// input files

		if opt.Verbose || opt.Log2File {
			log.Infof("kclassify v%s", VERSION)
			log.Info()
			log.Info("checking input files ...")
		}

		var files []string
		if readFromDir {
			if filepath.Clean(inDir) == filepath.Clean(filepath.Dir(outFile)) {
				log.Warningf("the output file is in the input directory: %s", inDir)
			}
			files, err = getFileListFromDir(inDir, reFile, opt.NumCPUs)
			if err != nil {
				checkError(errors.Wrapf(err, "walking dir: %s", inDir))
			}
			if len(files) == 0 {
				log.Warningf("  no files matching regular expression: %s", reFileStr)
			}
		} else {
			files = getFileListFromArgsAndFile(cmd, args, !skipFileCheck, "infile-list", !skipFileCheck)
			if opt.Verbose || opt.Log2File {
				if len(files) == 1 && isStdin(files[0]) {
					log.Info("  no files given, reading from stdin")
				}
			}
		}
		if len(files) < 1 {
			checkError(fmt.Errorf("FASTA/Q files needed"))
		} else if opt.Verbose || opt.Log2File {
			log.Infof("  %d input file(s) given", len(files))
		}

		// ---------------------------------------------------------------
		// log

		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Info("input and output:")
			log.Infof("  input directory: %s", inDir)
			log.Infof("    regular expression of input files: %s", reFileStr)
			log.Infof("    *regular expression for extracting reference name from file name: %s", reRefNameStr)
			log.Infof("    *regular expressions for filtering out sequences: %s", reSeqNameStrs)
			log.Infof("  output file: %s", outFile)
			log.Info()
			log.Infof("k-mer size: %d", k)
			log.Infof("compress: %v", !noCompress)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Infof("computing k-mers ...")
		}

		// ---------------------------------------------------------------

		kdb, distinct, err := BuildDatabase(files, bopt)
		if err != nil {
			checkError(fmt.Errorf("failed to build the database: %s", err))
		}

		dups := make(map[string]int, len(kdb.Labels))
		for _, label := range kdb.Labels {
			dups[label]++
		}
		for _, label := range util.UniqStrings(kdb.Labels) {
			if dups[label] > 1 {
				log.Warningf("reference label shared by %d files: %s", dups[label], label)
			}
		}

		if opt.Verbose || opt.Log2File {
			log.Info()
			for i, label := range kdb.Labels {
				log.Infof("  %s: %d distinct k-mers, %d singleton k-mers", label, distinct[i], len(kdb.Kmers[i]))
				if len(kdb.Kmers[i]) == 0 {
					log.Warningf("  %s: no singleton k-mers", label)
				}
			}
			log.Info()
		}

		_, err = db.Save(outFile, kdb, !noCompress)
		checkError(errors.Wrap(err, outFile))

		if opt.Verbose || opt.Log2File {
			log.Infof("finished building the database in %s from %d files with %d singleton k-mers",
				time.Since(timeStart), len(files), kdb.NumKmers())
			log.Info()
			log.Infof("database saved: %s", outFile)
		}
	},
}

func init() {
	RootCmd.AddCommand(buildCmd)

	// -----------------------------  input  -----------------------------

	buildCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	buildCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing FASTA/Q files. Directory symlinks are followed.`))

	buildCmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(\.gz|\.xz|\.zst|\.bz2)?$`,
		formatFlagUsage(`Regular expression for matching sequence files in -I/--in-dir, case ignored.`))

	buildCmd.Flags().StringP("ref-name-regexp", "N", `(?i)(.+)\.(f[aq](st[aq])?|fna)(\.gz|\.xz|\.zst|\.bz2)?$`,
		formatFlagUsage(`Regular expression (must contains "(" and ")") for extracting reference name from filename.`))

	buildCmd.Flags().StringSliceP("seq-name-filter", "B", []string{},
		formatFlagUsage(`List of regular expressions for filtering out sequences by header/name, case ignored.`))

	buildCmd.Flags().BoolP("skip-file-check", "S", false,
		formatFlagUsage(`Skip input file checking when given files or a file list.`))

	// -----------------------------  output  -----------------------------

	buildCmd.Flags().StringP("out-file", "o", "kclassify.db",
		formatFlagUsage(`Output file.`))

	buildCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existed output file.`))

	buildCmd.Flags().BoolP("no-compress", "", false,
		formatFlagUsage(`Do not compress the k-mer data.`))

	// -----------------------------  k-mer   -----------------------------

	buildCmd.Flags().IntP("kmer", "k", 31,
		formatFlagUsage(`K-mer size. K needs to be <= 32.`))

	buildCmd.SetUsageTemplate(usageTemplate("{ -I <seqs dir> | -X <file list> | <seq files> } [-o <db file>]"))
}
