package kb

// BaseDocument 是内置的文法ノート，在未配置外部 KB 文件时使用。
// 格式与外部文件一致：`## [KB<id>] <title>` 起始一个条目，
// `- triggers:` 行给出检索触发词。
const BaseDocument = `## [KB01] 助詞「は」と「が」の使い分け
- level: N5-N4
- triggers: は, が, 主語
- point: 「は」は話題（既知の情報）、「が」は新情報や排他の焦点を示す。
- 例: 私は学生です。／ 私が行きます（他の人ではなく）。
- 注意: 疑問詞が主語のときは「が」を使う（誰が来ましたか）。

## [KB02] 助詞「を」と「に」の基本
- level: N5
- triggers: を, に, へ, 行きます, 行った, 行きました
- point: 「を」は動作の対象、「に」は到達点・時点・相手を示す。移動先は「に」または「へ」。
- 例: 本を読みます。／ 学校に行きます。／ 友達に会います。
- 誤用例: ×学校を行きます → ○学校に行きます。

## [KB03] て形の接続
- level: N5-N4
- triggers: て, てから, ています, てください
- point: て形は動詞のグループで作り方が変わる。連続動作・依頼・進行を表す。
- 例: 朝ごはんを食べてから、学校に行きます。／ 今、勉強しています。
- 注意: 「行って」「来て」など促音便に注意。

## [KB04] 敬語と丁寧体の切り替え
- level: N4-N3
- triggers: です, ます, 敬語, お, ご, いらっしゃ, いただ
- point: 丁寧体（です・ます）と普通体を場面で統一する。店員・面接では丁寧体、友達にはカジュアル体。
- 例: 行く → 行きます → いらっしゃいます（尊敬）／ 参ります（謙譲）。
- 注意: 一文の中で文体を混ぜない。

## [KB05] 過去形と「た形」
- level: N5-N4
- triggers: た, でした, ました, 昨日, さっき
- point: 動詞の過去は「た形」、丁寧体なら「ました」。形容詞は「かった／でした」。
- 例: 昨日、映画を見ました。／ 楽しかったです。
- 誤用例: ×楽しいでした → ○楽しかったです。

## [KB06] 「〜たい」希望表現
- level: N5-N4
- triggers: たい, たく, ほしい
- point: 「動詞ます形＋たい」で自分の希望。第三者の希望は「〜たがっている」。
- 例: 日本に行きたいです。／ 弟はゲームをしたがっています。
- 注意: 「たい」形では対象を「が」で受けることもある（水が飲みたい）。

## [KB07] 条件表現「たら・ば・と・なら」
- level: N3
- triggers: たら, れば, なら, すると
- point: 「たら」は個別の仮定、「ば」は一般条件、「と」は必然結果、「なら」は話題の仮定。
- 例: 雨が降ったら、家にいます。／ 春になると、桜が咲きます。
- 注意: 「と」の後ろに意志・命令は使えない。

## [KB08] 授受表現「あげる・くれる・もらう」
- level: N4-N3
- triggers: あげ, くれ, もらっ, もらい, いただ
- point: 視点で動詞が決まる。自分→他人は「あげる」、他人→自分は「くれる」、受け取り側視点は「もらう」。
- 例: 先生に本をいただきました。／ 友達が手伝ってくれました。
- 注意: 「〜てくれる／〜てもらう」は恩恵のニュアンスを含む。
`
