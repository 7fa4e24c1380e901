/*
	Copyright 2020 Alexander Vollschwitz <xelalex@gmx.net>

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	  http://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package registry

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	awsecr "github.com/aws/aws-sdk-go/service/ecr"
	awsecrpub "github.com/aws/aws-sdk-go/service/ecrpublic"

	"github.com/xelalexv/imagekit/internal/pkg/reference"
)

//
func IsECR(registry string) (ecr, public bool, region, account string) {

	if strings.HasSuffix(registry, "public.ecr.aws") {
		ecr = true
		public = true
		if ix := strings.Index(registry, "@"); ix > -1 {
			account = registry[:ix]
			if ix = strings.Index(account, ":"); ix > -1 {
				region = account[ix+1:]
				account = account[:ix]
			}
		}
		return
	}

	url := strings.Split(registry, ".")

	ecr = (len(url) == 6 || len(url) == 7) && url[1] == "dkr" && url[2] == "ecr" &&
		url[4] == "amazonaws" && url[5] == "com" && (len(url) == 6 || url[6] == "cn")

	if ecr {
		region = url[3]
		account = url[0]
	} else {
		region = ""
		account = ""
	}

	return
}

// ECRTarget describes where an image is to be pushed in ECR.
type ECRTarget struct {
	Registry string
	Region   string
	Account  string
	Public   bool
}

// NewECRTarget returns the ECR target for ref's registry, or nil if ref does
// not point to ECR.
func NewECRTarget(ref *reference.Reference) *ECRTarget {
	isEcr, public, region, account := IsECR(ref.Host())
	if !isEcr {
		return nil
	}
	return &ECRTarget{
		Registry: ref.Host(),
		Region:   region,
		Account:  account,
		Public:   public,
	}
}

// CreateECRTarget makes sure the repository for ref exists in ECR, since ECR
// does not create repositories on push.
func CreateECRTarget(ref *reference.Reference) error {

	t := NewECRTarget(ref)
	if t == nil {
		return nil
	}

	sess, err := session.NewSession()
	if err != nil {
		return err
	}

	if t.Public {
		return createECRPubTarget(sess, ref.NameWithoutTag(), ref.Path(),
			t.Region, t.Account)
	}
	return createECRTarget(sess, ref.NameWithoutTag(), ref.Path(), t.Region,
		t.Account)
}

//
func createECRPubTarget(sess *session.Session, ref, repo, region, account string) error {

	svc := awsecrpub.New(sess, &aws.Config{
		Region: aws.String(region),
	})

	rp := repo
	if p := strings.SplitN(repo, "/", 2); len(p) > 1 {
		rp = p[1]
	}

	log.WithFields(log.Fields{"long": repo, "short": rp}).Debug("repo")

	inpDescr := &awsecrpub.DescribeRepositoriesInput{
		RegistryId:      aws.String(account),
		RepositoryNames: []*string{aws.String(rp)},
	}

	out, err := svc.DescribeRepositories(inpDescr)
	if err == nil && len(out.Repositories) > 0 {
		log.WithField("ref", ref).Info("ECR public target already exists")
		return nil
	}

	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			if aerr.Code() != awsecrpub.ErrCodeRepositoryNotFoundException {
				return err
			}
		} else {
			return err
		}
	}

	log.WithField("ref", ref).Info("creating ECR public target")
	inpCrea := &awsecrpub.CreateRepositoryInput{
		RepositoryName: aws.String(rp),
	}

	_, err = svc.CreateRepository(inpCrea)
	return err
}

//
func createECRTarget(sess *session.Session, ref, repo, region, account string) error {

	svc := awsecr.New(sess, &aws.Config{
		Region: aws.String(region),
	})

	inpDescr := &awsecr.DescribeRepositoriesInput{
		RegistryId:      aws.String(account),
		RepositoryNames: []*string{aws.String(repo)},
	}

	out, err := svc.DescribeRepositories(inpDescr)
	if err == nil && len(out.Repositories) > 0 {
		log.WithField("ref", ref).Info("ECR target already exists")
		return nil
	}

	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			if aerr.Code() != awsecr.ErrCodeRepositoryNotFoundException {
				return err
			}
		} else {
			return err
		}
	}

	log.WithField("ref", ref).Info("creating ECR target")
	inpCrea := &awsecr.CreateRepositoryInput{
		RepositoryName: aws.String(repo),
	}

	_, err = svc.CreateRepository(inpCrea)
	return err
}
